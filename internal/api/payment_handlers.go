package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/btiflix/catalog/internal/payments"
)

type createInvoiceRequest struct {
	MovieID string   `json:"movie_id"`
	Amount  *float64 `json:"amount"`
}

// createInvoice handles POST /api/payments/invoices: looks the movie
// up, then asks the gateway for a payment redirect. The configured
// amount applies when the request carries none.
func (s *Server) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.MovieID == "" {
		writeError(w, http.StatusBadRequest, "movie_id is required")
		return
	}
	amount := s.cfg.Payments.Amount
	if req.Amount != nil {
		if *req.Amount <= 0 {
			writeError(w, http.StatusBadRequest, "amount must be positive")
			return
		}
		amount = *req.Amount
	}

	invoice, err := s.invoices.CreateInvoice(r.Context(), req.MovieID, amount)
	if err != nil {
		if errors.Is(err, payments.ErrGateway) {
			s.logger.Error("payment gateway refused invoice",
				zap.String("movie_id", req.MovieID), zap.Error(err))
			writeError(w, http.StatusBadGateway, "payment gateway error")
			return
		}
		s.logger.Error("create invoice failed",
			zap.String("movie_id", req.MovieID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create invoice")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": invoice})
}
