// Package postgres provides pgx-backed implementations of the catalog
// persistence contracts.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/btiflix/catalog/internal/catalog"
	"github.com/btiflix/catalog/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// dbPool is the subset of pgxpool.Pool the stores use; pgxmock
// satisfies it for tests.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// NewPool builds a pgx pool from config. Both stores share one pool.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// MovieStore implements store.MovieRepository on Postgres.
type MovieStore struct {
	pool dbPool
}

// NewMovieStore constructs a store from an existing pool.
func NewMovieStore(pool dbPool) *MovieStore {
	return &MovieStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *MovieStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const movieColumns = `id, title, genre, quality, rating, overview, released, casts, duration, country, production, thumbnailurl, backgroundurl, watchlink`

// Upsert inserts a record keyed by id, ignoring duplicates. Duration
// text is normalized to integer minutes here; text without digits
// stores NULL.
func (s *MovieStore) Upsert(ctx context.Context, rec catalog.MovieRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	var duration *int
	if minutes, ok := catalog.DurationMinutes(rec.Duration); ok {
		duration = &minutes
	}
	query := `
INSERT INTO movies (` + movieColumns + `, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW())
ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.Title,
		rec.Genre,
		rec.Quality,
		rec.Rating,
		rec.Overview,
		rec.Released,
		rec.Casts,
		duration,
		rec.Country,
		rec.Production,
		rec.ThumbnailURL,
		rec.BackgroundURL,
		rec.WatchLink,
	)
	if err != nil {
		return fmt.Errorf("upsert movie: %w", err)
	}
	return nil
}

// Search executes one ranked read. All supplied predicates are
// conjunctive; the text predicate expands into the 3-way title/genre
// disjunction whose match tier also drives the ordering.
func (s *MovieStore) Search(ctx context.Context, q catalog.SearchQuery) ([]catalog.MovieRecord, error) {
	query, args := buildSearchQuery(q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	defer rows.Close()

	var records []catalog.MovieRecord
	for rows.Next() {
		rec, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	return records, nil
}

// GetByTitle returns the first case-insensitive exact title match.
func (s *MovieStore) GetByTitle(ctx context.Context, title string) (catalog.MovieRecord, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE title ILIKE $1 LIMIT 1`
	rec, err := scanMovie(s.pool.QueryRow(ctx, query, title))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.MovieRecord{}, store.ErrNotFound
		}
		return catalog.MovieRecord{}, err
	}
	return rec, nil
}

func buildSearchQuery(q catalog.SearchQuery) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT ` + movieColumns + ` FROM movies WHERE 1=1`)

	// Parameter positions of the three text-match shapes, reused in
	// ORDER BY so ranking sees the exact predicate that matched.
	var fullIdx, wordIdx, genreIdx int
	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		args = append(args, "%"+text+"%")
		fullIdx = len(args)
		args = append(args, "% "+text+" %")
		wordIdx = len(args)
		args = append(args, "%"+text+"%")
		genreIdx = len(args)
		fmt.Fprintf(&b, " AND (title ILIKE $%d OR title ILIKE $%d OR genre ILIKE $%d)", fullIdx, wordIdx, genreIdx)
	}
	if q.Genre != "" {
		args = append(args, "%"+strings.ToLower(q.Genre)+"%")
		fmt.Fprintf(&b, " AND genre ILIKE $%d", len(args))
	}
	if q.Quality != "" {
		args = append(args, q.Quality)
		fmt.Fprintf(&b, " AND LOWER(quality) = LOWER($%d)", len(args))
	}
	if q.MinRating != nil {
		args = append(args, *q.MinRating)
		fmt.Fprintf(&b, " AND CAST(NULLIF(rating, '') AS FLOAT) >= $%d", len(args))
	}
	if q.ReleaseYear != nil {
		args = append(args, *q.ReleaseYear)
		fmt.Fprintf(&b, ` AND (SUBSTRING(released FROM '\d{4}'))::INT = $%d`, len(args))
	}

	if fullIdx > 0 {
		fmt.Fprintf(&b, ` ORDER BY CASE`+
			` WHEN title ILIKE $%d THEN 1`+
			` WHEN title ILIKE $%d THEN 2`+
			` WHEN genre ILIKE $%d THEN 3`+
			` ELSE 4 END,`+
			` CAST(NULLIF(rating, '') AS FLOAT) DESC NULLS LAST,`+
			` created_at DESC`, fullIdx, wordIdx, genreIdx)
	} else {
		b.WriteString(` ORDER BY CAST(NULLIF(rating, '') AS FLOAT) DESC NULLS LAST, created_at DESC`)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " LIMIT $%d", len(args))

	return b.String(), args
}

func scanMovie(row pgx.Row) (catalog.MovieRecord, error) {
	var (
		rec      catalog.MovieRecord
		duration *int
	)
	err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Genre,
		&rec.Quality,
		&rec.Rating,
		&rec.Overview,
		&rec.Released,
		&rec.Casts,
		&duration,
		&rec.Country,
		&rec.Production,
		&rec.ThumbnailURL,
		&rec.BackgroundURL,
		&rec.WatchLink,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.MovieRecord{}, err
		}
		return catalog.MovieRecord{}, fmt.Errorf("scan movie row: %w", err)
	}
	if duration != nil {
		rec.Duration = strconv.Itoa(*duration)
	}
	return rec, nil
}
