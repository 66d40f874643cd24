package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/btiflix/catalog/internal/catalog"
)

// Progress table keys, one row each.
const (
	keyLastProcessedIndex = "last_processed_index"
	keyIsRunning          = "is_running"
)

// ProgressStore implements store.ProgressRepository on the key/value
// crawl_progress table.
type ProgressStore struct {
	pool dbPool
}

// NewProgressStore constructs a store from an existing pool.
func NewProgressStore(pool dbPool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// Progress reads the persisted cursor and running flag. Missing rows
// read as zero values so a fresh database starts at index 0.
func (s *ProgressStore) Progress(ctx context.Context) (catalog.CrawlProgress, error) {
	query := `SELECT key, value FROM crawl_progress WHERE key IN ($1, $2)`
	rows, err := s.pool.Query(ctx, query, keyLastProcessedIndex, keyIsRunning)
	if err != nil {
		return catalog.CrawlProgress{}, fmt.Errorf("read crawl progress: %w", err)
	}
	defer rows.Close()

	var progress catalog.CrawlProgress
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return catalog.CrawlProgress{}, fmt.Errorf("scan crawl progress: %w", err)
		}
		switch key {
		case keyLastProcessedIndex:
			index, parseErr := strconv.ParseInt(value, 10, 64)
			if parseErr != nil {
				return catalog.CrawlProgress{}, fmt.Errorf("malformed %s value %q", key, value)
			}
			progress.LastProcessedIndex = index
		case keyIsRunning:
			progress.IsRunning = value == "true"
		}
	}
	if err := rows.Err(); err != nil {
		return catalog.CrawlProgress{}, fmt.Errorf("read crawl progress: %w", err)
	}
	return progress, nil
}

// ClaimRun flips is_running to true only when it is not already set,
// in one statement, so two concurrent starts cannot both win.
func (s *ProgressStore) ClaimRun(ctx context.Context) (bool, error) {
	query := `
INSERT INTO crawl_progress (key, value) VALUES ($1, 'true')
ON CONFLICT (key) DO UPDATE SET value = 'true'
WHERE crawl_progress.value <> 'true'`
	tag, err := s.pool.Exec(ctx, query, keyIsRunning)
	if err != nil {
		return false, fmt.Errorf("claim crawl run: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// EndRun clears the running flag.
func (s *ProgressStore) EndRun(ctx context.Context) error {
	if err := s.setKey(ctx, keyIsRunning, "false"); err != nil {
		return fmt.Errorf("end crawl run: %w", err)
	}
	return nil
}

// SetLastProcessedIndex checkpoints the resume cursor.
func (s *ProgressStore) SetLastProcessedIndex(ctx context.Context, index int64) error {
	if err := s.setKey(ctx, keyLastProcessedIndex, strconv.FormatInt(index, 10)); err != nil {
		return fmt.Errorf("checkpoint crawl index: %w", err)
	}
	return nil
}

func (s *ProgressStore) setKey(ctx context.Context, key, value string) error {
	query := `
INSERT INTO crawl_progress (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return err
	}
	return nil
}
