// Package store declares the persistence contracts shared by the crawl
// pipeline and the search API. Keeping these as interfaces decouples
// the coordinator and handlers from the Postgres implementations.
package store

import (
	"context"
	"errors"

	"github.com/btiflix/catalog/internal/catalog"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// MovieRepository owns the catalog table.
type MovieRepository interface {
	// Upsert writes a record keyed by id with insert-or-ignore
	// semantics: a duplicate id is a silent no-op, so re-crawling is
	// idempotent.
	Upsert(ctx context.Context, rec catalog.MovieRecord) error
	// Search executes one ranked read over the catalog.
	Search(ctx context.Context, q catalog.SearchQuery) ([]catalog.MovieRecord, error)
	// GetByTitle returns the first case-insensitive title match or
	// ErrNotFound.
	GetByTitle(ctx context.Context, title string) (catalog.MovieRecord, error)
}

// ProgressRepository owns the singleton crawl checkpoint.
type ProgressRepository interface {
	// Progress reads the persisted cursor and running flag.
	Progress(ctx context.Context) (catalog.CrawlProgress, error)
	// ClaimRun atomically flips is_running from false to true. It
	// returns false when another run already holds the flag, which is
	// the storage-level guard against two concurrent crawls.
	ClaimRun(ctx context.Context) (bool, error)
	// EndRun clears is_running regardless of how the run finished.
	EndRun(ctx context.Context) error
	// SetLastProcessedIndex checkpoints the resume cursor.
	SetLastProcessedIndex(ctx context.Context, index int64) error
}
