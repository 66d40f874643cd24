package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/btiflix/catalog/internal/catalog"
	"github.com/btiflix/catalog/internal/store"
)

const queryTimeout = 3 * time.Second

// searchMovies handles GET /api/movies?q=&genre=&quality=&min_rating=
// &release_year=&limit=. Results come back ranked: whole-phrase title
// matches first, then word matches, then genre matches, best-rated
// first within a tier. Invalid numeric filters are a 400.
func (s *Server) searchMovies(w http.ResponseWriter, r *http.Request) {
	query, err := s.parseSearchQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	movies, err := s.movies.Search(ctx, query)
	if err != nil {
		s.logger.Error("search movies failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to search movies")
		return
	}
	if movies == nil {
		movies = []catalog.MovieRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"movies": movies})
}

// getMovieByTitle handles GET /api/movies/{title}: case-insensitive
// exact title lookup, 404 when absent.
func (s *Server) getMovieByTitle(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(chi.URLParam(r, "title"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	movie, err := s.movies.GetByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "movie not found")
			return
		}
		s.logger.Error("get movie failed", zap.String("title", title), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load movie")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movie": movie})
}

func (s *Server) parseSearchQuery(r *http.Request) (catalog.SearchQuery, error) {
	q := r.URL.Query()
	query := catalog.SearchQuery{
		Text:    strings.TrimSpace(q.Get("q")),
		Genre:   strings.TrimSpace(q.Get("genre")),
		Quality: strings.TrimSpace(q.Get("quality")),
		Limit:   s.cfg.Search.DefaultLimit,
	}

	if raw := q.Get("min_rating"); raw != "" {
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil || val < 0 {
			return catalog.SearchQuery{}, errors.New("invalid min_rating")
		}
		query.MinRating = &val
	}
	if raw := q.Get("release_year"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val <= 0 {
			return catalog.SearchQuery{}, errors.New("invalid release_year")
		}
		query.ReleaseYear = &val
	}
	if raw := q.Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val <= 0 {
			return catalog.SearchQuery{}, errors.New("invalid limit")
		}
		if val > s.cfg.Search.MaxLimit {
			val = s.cfg.Search.MaxLimit
		}
		query.Limit = val
	}
	return query, nil
}
