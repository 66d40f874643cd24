package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/btiflix/catalog/internal/crawler"
)

type startCrawlRequest struct {
	ResumeFrom *int64 `json:"resume_from"`
}

type startCrawlResponse struct {
	Started      bool  `json:"started"`
	ResumingFrom int64 `json:"resumingFrom"`
}

type crawlStatusResponse struct {
	LastProcessedIndex int64 `json:"lastProcessedIndex"`
	IsRunning          bool  `json:"isRunning"`
}

// startCrawl handles POST /api/admin/crawl. The body may carry
// resume_from; without it the run resumes from the persisted
// checkpoint. A second start while a run is active is a 409.
func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req startCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ResumeFrom != nil && *req.ResumeFrom < 0 {
		writeError(w, http.StatusBadRequest, "resume_from must be >= 0")
		return
	}

	startIndex, err := s.resolveStartIndex(r.Context(), req.ResumeFrom)
	if err != nil {
		s.logger.Error("load crawl progress failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load crawl progress")
		return
	}

	if _, err := s.crawls.Start(r.Context(), startIndex); err != nil {
		if errors.Is(err, crawler.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "a crawl is already running")
			return
		}
		s.logger.Error("start crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start crawl")
		return
	}

	s.logger.Info("crawl started via API", zap.Int64("resuming_from", startIndex))
	writeJSON(w, http.StatusAccepted, startCrawlResponse{Started: true, ResumingFrom: startIndex})
}

// crawlStatus handles GET /api/admin/crawl/status.
func (s *Server) crawlStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	progress, err := s.progress.Progress(ctx)
	if err != nil {
		s.logger.Error("load crawl progress failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load crawl progress")
		return
	}
	writeJSON(w, http.StatusOK, crawlStatusResponse{
		LastProcessedIndex: progress.LastProcessedIndex,
		IsRunning:          progress.IsRunning,
	})
}

func (s *Server) resolveStartIndex(ctx context.Context, resumeFrom *int64) (int64, error) {
	if resumeFrom != nil {
		return *resumeFrom, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	progress, err := s.progress.Progress(ctx)
	if err != nil {
		return 0, err
	}
	return progress.LastProcessedIndex, nil
}
