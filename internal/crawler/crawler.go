// Package crawler implements the sitemap-driven ingestion pipeline:
// walk a configured range of sitemap files, fetch and extract each
// detail page, persist records, and checkpoint a resumable cursor.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/btiflix/catalog/internal/catalog"
	"github.com/btiflix/catalog/internal/fetcher"
	"github.com/btiflix/catalog/internal/metrics"
	"github.com/btiflix/catalog/internal/sitemap"
	"github.com/btiflix/catalog/internal/store"
)

// ErrAlreadyRunning reports that another crawl holds the running flag.
var ErrAlreadyRunning = errors.New("a crawl is already running")

// PageFetcher fetches one detail page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Page, error)
}

// Extractor turns a fetched page into a MovieRecord.
type Extractor interface {
	Extract(ctx context.Context, body []byte, sourceURL string) catalog.MovieRecord
}

// Config controls one coordinator.
type Config struct {
	// SitemapStart..SitemapEnd is the inclusive sitemap index range.
	SitemapStart int
	SitemapEnd   int
	// Delay is the fixed politeness pause between item fetches.
	Delay time.Duration
	// AcceptDegradedIDs stores records whose identifier lookup failed
	// with the placeholder id, matching the site dump's historical
	// behavior. Off by default: placeholder ids collide.
	AcceptDegradedIDs bool
}

// Result is what a finished run reports back to its caller.
type Result struct {
	Processed          int   `json:"processed"`
	LastProcessedIndex int64 `json:"lastProcessedIndex"`
}

// pauseController abstracts the pacing delay so tests can observe it.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Coordinator drives crawl runs. It performs sequential I/O, one
// fetch in flight at a time; the only suspension points are the
// network calls and the pacing delay, and both honor ctx.
type Coordinator struct {
	cfg      Config
	source   sitemap.Source
	fetch    PageFetcher
	extract  Extractor
	movies   store.MovieRepository
	progress store.ProgressRepository
	pause    pauseController
	logger   *zap.Logger
}

// New constructs a Coordinator.
func New(
	cfg Config,
	source sitemap.Source,
	fetch PageFetcher,
	extract Extractor,
	movies store.MovieRepository,
	progress store.ProgressRepository,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:      cfg,
		source:   source,
		fetch:    fetch,
		extract:  extract,
		movies:   movies,
		progress: progress,
		pause:    timerPauseController{},
		logger:   logger,
	}
}

// Run executes one crawl synchronously, starting at startIndex in the
// flattened candidate-URL sequence. It claims the running flag first
// and always releases it, even on cancellation, so a crashed run never
// blocks the next one.
func (c *Coordinator) Run(ctx context.Context, startIndex int64) (Result, error) {
	if err := c.claim(ctx); err != nil {
		return Result{}, err
	}
	return c.run(ctx, startIndex)
}

// claim takes the storage-level running flag or fails with
// ErrAlreadyRunning.
func (c *Coordinator) claim(ctx context.Context) error {
	claimed, err := c.progress.ClaimRun(ctx)
	if err != nil {
		return fmt.Errorf("claim run: %w", err)
	}
	if !claimed {
		return ErrAlreadyRunning
	}
	return nil
}

// run is the claimed crawl loop; the caller must hold the running
// flag.
func (c *Coordinator) run(ctx context.Context, startIndex int64) (Result, error) {
	metrics.SetCrawlActive(true)
	defer func() {
		metrics.SetCrawlActive(false)
		// The request context may already be dead; release the flag
		// regardless.
		if endErr := c.progress.EndRun(context.WithoutCancel(ctx)); endErr != nil {
			c.logger.Error("release running flag failed", zap.Error(endErr))
		}
	}()

	c.logger.Info("crawl started",
		zap.Int64("start_index", startIndex),
		zap.Int("sitemap_start", c.cfg.SitemapStart),
		zap.Int("sitemap_end", c.cfg.SitemapEnd),
	)

	result := Result{LastProcessedIndex: startIndex}
	var position int64

	for i := c.cfg.SitemapStart; i <= c.cfg.SitemapEnd; i++ {
		urls, err := c.loadSitemap(ctx, i)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			// File-level isolation: one bad sitemap never aborts the
			// run.
			c.logger.Warn("skipping sitemap", zap.Int("sitemap", i), zap.Error(err))
			metrics.ObserveSkipped("sitemap")
			continue
		}
		c.logger.Info("sitemap loaded", zap.Int("sitemap", i), zap.Int("urls", len(urls)))

		for _, url := range urls {
			index := position
			position++
			if index < startIndex {
				continue
			}
			if err := c.processItem(ctx, index, url, &result); err != nil {
				return result, err
			}
			c.pause.Pause(ctx, c.cfg.Delay)
		}
	}

	c.logger.Info("crawl finished",
		zap.Int("processed", result.Processed),
		zap.Int64("last_processed_index", result.LastProcessedIndex),
	)
	return result, nil
}

func (c *Coordinator) loadSitemap(ctx context.Context, index int) ([]string, error) {
	data, err := c.source.Load(ctx, index)
	if err != nil {
		return nil, err
	}
	return sitemap.Read(data)
}

// processItem handles one candidate URL. Item-level failures are
// logged and swallowed; only context cancellation propagates.
func (c *Coordinator) processItem(ctx context.Context, index int64, url string, result *Result) error {
	page, err := c.fetch.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("skipping item: fetch failed",
			zap.Int64("index", index), zap.String("url", url), zap.Error(err))
		metrics.ObservePage("error")
		metrics.ObserveSkipped("fetch")
		return nil
	}
	metrics.ObservePage("ok")

	rec := c.extract.Extract(ctx, page.Body, url)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if rec.Degraded() && !c.cfg.AcceptDegradedIDs {
		c.logger.Warn("skipping item: no stable identifier",
			zap.Int64("index", index), zap.String("url", url))
		metrics.ObserveSkipped("degraded_id")
		return nil
	}

	if err := c.movies.Upsert(ctx, rec); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("skipping item: store failed",
			zap.Int64("index", index), zap.String("url", url), zap.Error(err))
		metrics.ObserveSkipped("store")
		return nil
	}
	metrics.ObserveStored()

	result.Processed++
	result.LastProcessedIndex = index + 1
	if err := c.progress.SetLastProcessedIndex(ctx, result.LastProcessedIndex); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// The record is stored; a lost checkpoint only means a
		// harmless re-upsert after the next resume.
		c.logger.Error("checkpoint failed",
			zap.Int64("index", result.LastProcessedIndex), zap.Error(err))
	}
	c.logger.Info("stored movie",
		zap.Int64("index", index), zap.String("id", rec.ID), zap.String("title", rec.Title))
	return nil
}
