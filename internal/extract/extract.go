// Package extract parses a fetched detail-page document into a
// MovieRecord. Every field has its own extraction function and an
// explicit fallback, so one missing field never blocks the others.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/btiflix/catalog/internal/catalog"
	"github.com/btiflix/catalog/internal/fetcher"
)

// DefaultEpisodesURL is the site-internal endpoint that resolves a
// detail page's numeric suffix to its stable player identifier. The
// %s verb receives the suffix.
const DefaultEpisodesURL = "https://123moviestv.net/ajax/movie/episodes/%s"

var (
	backgroundURLPattern = regexp.MustCompile(`url\(["']?(.*?)["']?\)`)
	ratingPattern        = regexp.MustCompile(`IMDb:\s*(\d+\.\d+)`)
	urlSuffixPattern     = regexp.MustCompile(`\d+$`)
)

// Fetcher issues the secondary lookup against the episodes endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Page, error)
}

// Config controls the extractor.
type Config struct {
	// EpisodesURL overrides the internal identifier endpoint,
	// primarily for tests.
	EpisodesURL string
}

// Extractor turns detail-page HTML into MovieRecords.
type Extractor struct {
	fetch       Fetcher
	episodesURL string
}

// New builds an Extractor. fetch may be nil, in which case the
// identifier lookup is skipped and records carry the placeholder id.
func New(fetch Fetcher, cfg Config) *Extractor {
	episodesURL := cfg.EpisodesURL
	if episodesURL == "" {
		episodesURL = DefaultEpisodesURL
	}
	return &Extractor{fetch: fetch, episodesURL: episodesURL}
}

// Extract parses one detail page. It never fails outright: absent
// fields resolve to their documented defaults, and an unreachable
// episodes endpoint leaves the placeholder id for the caller's
// degraded-record policy.
func (e *Extractor) Extract(ctx context.Context, body []byte, sourceURL string) catalog.MovieRecord {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		// html.Parse accepts arbitrary bytes; this path exists only
		// to keep the contract total.
		return e.fallbackRecord(ctx, sourceURL)
	}

	rating, ok := Rating(doc)
	if !ok {
		rating = SynthesizeRating()
	}

	return catalog.MovieRecord{
		ID:            e.lookupID(ctx, sourceURL),
		Title:         Title(doc),
		Genre:         RowAnchors(doc, "Genre"),
		Quality:       Quality(doc),
		Rating:        rating,
		Overview:      Overview(doc),
		Released:      RowText(doc, "Released"),
		Casts:         RowAnchors(doc, "Casts"),
		Duration:      RowText(doc, "Duration"),
		Country:       RowAnchors(doc, "Country"),
		Production:    RowAnchors(doc, "Production"),
		ThumbnailURL:  ThumbnailURL(doc),
		BackgroundURL: BackgroundURL(doc),
		WatchLink:     sourceURL,
	}
}

// fallbackRecord is the all-defaults record for an unparsable body.
func (e *Extractor) fallbackRecord(ctx context.Context, sourceURL string) catalog.MovieRecord {
	return catalog.MovieRecord{
		ID:         e.lookupID(ctx, sourceURL),
		Title:      catalog.UnknownValue,
		Genre:      catalog.UnknownValue,
		Quality:    catalog.DefaultQuality,
		Rating:     SynthesizeRating(),
		Overview:   catalog.DefaultOverview,
		Released:   catalog.UnknownValue,
		Casts:      catalog.UnknownValue,
		Duration:   catalog.UnknownValue,
		Country:    catalog.UnknownValue,
		Production: catalog.UnknownValue,
		WatchLink:  sourceURL,
	}
}

// Title extracts the heading title.
func Title(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find(".heading-name").First().Text())
	if title == "" {
		return catalog.UnknownValue
	}
	return title
}

// ThumbnailURL extracts the poster image URL.
func ThumbnailURL(doc *goquery.Document) string {
	src, _ := doc.Find("img.film-poster-img").First().Attr("src")
	return strings.TrimSpace(src)
}

// BackgroundURL extracts the cover image URL from the inline style of
// the cover block.
func BackgroundURL(doc *goquery.Document) string {
	style, _ := doc.Find(".cover_follow").First().Attr("style")
	match := backgroundURLPattern.FindStringSubmatch(style)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// Overview extracts the description block, text nodes only so nested
// markup does not leak into the copy.
func Overview(doc *goquery.Document) string {
	text := ownText(doc.Find(".description").First())
	if text == "" {
		return catalog.DefaultOverview
	}
	return text
}

// RowText extracts the free-text value of the labeled row, again from
// text nodes only so the label's anchors are excluded.
func RowText(doc *goquery.Document, label string) string {
	text := ownText(findRow(doc, label))
	if text == "" {
		return catalog.UnknownValue
	}
	return text
}

// RowAnchors collects all anchor texts of the labeled row joined with
// ", " (genre, casts, country, production).
func RowAnchors(doc *goquery.Document, label string) string {
	var values []string
	findRow(doc, label).Find("a").Each(func(_ int, a *goquery.Selection) {
		if v := strings.TrimSpace(a.Text()); v != "" {
			values = append(values, v)
		}
	})
	if len(values) == 0 {
		return catalog.UnknownValue
	}
	return strings.Join(values, ", ")
}

// Quality sniffs HD/4K markers out of the row lines.
func Quality(doc *goquery.Document) string {
	for _, marker := range []string{"4K", "HD"} {
		row := findRow(doc, marker)
		if text := strings.TrimSpace(row.Text()); text != "" {
			return text
		}
	}
	return catalog.DefaultQuality
}

// Rating parses the IMDb score from its labeled block. The bool is
// false when the block or the score is absent.
func Rating(doc *goquery.Document) (string, bool) {
	match := ratingPattern.FindStringSubmatch(findRow(doc, "IMDb").Text())
	if len(match) < 2 {
		return "", false
	}
	return match[1], true
}

// SynthesizeRating produces the documented pseudo-random fallback in
// [5.0, 10.0), formatted to one decimal. Truncation keeps a draw near
// the top of the range from rounding up to 10.0.
func SynthesizeRating() string {
	return fmt.Sprintf("%.1f", math.Floor((5+rand.Float64()*5)*10)/10)
}

// lookupID derives the numeric URL suffix and resolves it through the
// episodes endpoint to the first stable player identifier.
func (e *Extractor) lookupID(ctx context.Context, sourceURL string) string {
	suffix := urlSuffixPattern.FindString(sourceURL)
	if suffix == "" || e.fetch == nil {
		return catalog.PlaceholderID
	}
	page, err := e.fetch.Fetch(ctx, fmt.Sprintf(e.episodesURL, suffix))
	if err != nil {
		return catalog.PlaceholderID
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return catalog.PlaceholderID
	}
	id := catalog.PlaceholderID
	doc.Find(".ulclear.fss-list .btn-play.link-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("data-id"); ok && strings.TrimSpace(v) != "" {
			id = strings.TrimSpace(v)
			return false
		}
		return true
	})
	return id
}

// findRow returns the first labeled row whose text contains label.
func findRow(doc *goquery.Document, label string) *goquery.Selection {
	return doc.Find(".row-line").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), label)
	}).First()
}

// ownText concatenates the direct text-node children of s, trimmed.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Contents().Nodes {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
	}
	return strings.TrimSpace(b.String())
}
