// Package sitemap turns the source site's XML sitemaps into ordered
// lists of candidate detail-page URLs.
package sitemap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrParse signals malformed sitemap XML or a document without the
// expected urlset root. Callers skip the file and continue.
var ErrParse = errors.New("invalid sitemap")

// contentPathSegment identifies detail-page URLs inside a sitemap.
const contentPathSegment = "/movie/"

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// Read parses a sitemap document and returns the detail-page URLs it
// lists, in document order. URLs whose path does not contain the
// content segment are dropped; the survivors' order is the unit the
// crawl cursor advances over.
func Read(data []byte) ([]string, error) {
	var set urlset
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	urls := make([]string, 0, len(set.URLs))
	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		parsed, err := url.Parse(loc)
		if err != nil {
			continue
		}
		if !strings.Contains(parsed.Path, contentPathSegment) {
			continue
		}
		urls = append(urls, loc)
	}
	return urls, nil
}

// Source supplies raw sitemap documents by index. The crawl
// coordinator walks a contiguous index range against one Source.
type Source interface {
	Load(ctx context.Context, index int) ([]byte, error)
}

// DirSource loads sitemaps from a local directory by filename
// convention, matching how the site's sitemap dumps are laid out.
type DirSource struct {
	Dir string
	// Pattern is a fmt pattern with one %d verb; defaults to
	// "sitemap-list-%d.xml".
	Pattern string
}

// Load reads the sitemap file for the given index.
func (s DirSource) Load(_ context.Context, index int) ([]byte, error) {
	pattern := s.Pattern
	if pattern == "" {
		pattern = "sitemap-list-%d.xml"
	}
	name := filepath.Join(s.Dir, fmt.Sprintf(pattern, index))
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("load sitemap %d: %w", index, err)
	}
	return data, nil
}
