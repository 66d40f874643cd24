// Package fetcher issues single-page HTTP GETs against the source site
// using a Colly collector.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// DefaultUserAgent is the browser identity the source site expects.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Page is one fetched response body plus its status.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// StatusError reports a non-2xx response. The crawl loop skips the
// item; no retry happens at this layer.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// Client implements the page fetcher. One fetch is in flight at a time
// per call; pacing between calls belongs to the crawl coordinator.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Client with a pooled transport.
func New(cfg Config) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	// colly v2.1.0's Async option ignores its argument and always enables
	// async mode; collectors default to synchronous, so pass no option.
	c := colly.NewCollector()
	c.WithTransport(newHTTPTransport())
	return &Client{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET. The Referer is always the page
// being requested; the site refuses to serve content without it.
func (c *Client) Fetch(ctx context.Context, pageURL string) (Page, error) {
	var (
		result   Page
		fetchErr error
	)

	collector := c.baseCollector.Clone()
	collector.UserAgent = c.cfg.UserAgent
	collector.AllowURLRevisit = true
	collector.SetRequestTimeout(c.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "*/*")
		r.Headers.Set("Referer", pageURL)
		r.Headers.Set("X-Requested-With", "XMLHttpRequest")
	})
	collector.OnResponse(func(r *colly.Response) {
		result = Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			fetchErr = &StatusError{URL: pageURL, StatusCode: r.StatusCode}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return Page{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			var statusErr *StatusError
			if errors.As(fetchErr, &statusErr) {
				return Page{}, fetchErr
			}
			return Page{}, fmt.Errorf("fetch %s: %w", pageURL, fetchErr)
		}
		if err != nil {
			return Page{}, fmt.Errorf("fetch %s: %w", pageURL, err)
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
