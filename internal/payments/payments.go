// Package payments holds the client for the external payment gateway.
// The gateway is opaque: we hand it an order reference and amount and
// get back a redirect URL where the customer completes the flow.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// ErrGateway reports that the gateway refused or failed the request.
var ErrGateway = errors.New("payment gateway error")

// Config holds gateway connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Invoice is a created payment intent.
type Invoice struct {
	ID          string  `json:"id"`
	MovieID     string  `json:"movieId"`
	Amount      float64 `json:"amount"`
	RedirectURL string  `json:"redirectUrl"`
}

// Client talks to the gateway's invoice endpoint.
type Client struct {
	http    *resty.Client
	baseURL string
}

// NewClient builds a gateway client. The API key, when set, is sent as
// a bearer token.
func NewClient(cfg Config) *Client {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &Client{http: client, baseURL: cfg.BaseURL}
}

type createInvoiceRequest struct {
	OrderID     string  `json:"order_id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

type createInvoiceResponse struct {
	RedirectURL string `json:"redirect_url"`
	Detail      string `json:"detail,omitempty"`
}

// CreateInvoice registers a payment intent for one movie and returns
// the invoice with the gateway's redirect URL. The order reference is
// generated here so retries never reuse one.
func (c *Client) CreateInvoice(ctx context.Context, movieID string, amount float64) (Invoice, error) {
	if movieID == "" {
		return Invoice{}, errors.New("movie id is required")
	}
	if amount <= 0 {
		return Invoice{}, errors.New("amount must be positive")
	}

	orderID := uuid.NewString()
	req := createInvoiceRequest{
		OrderID:     orderID,
		Description: "movie " + movieID,
		Amount:      amount,
	}

	var body createInvoiceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&body).
		SetError(&body).
		Post(c.baseURL + "/invoices")
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	if resp.IsError() {
		if body.Detail != "" {
			return Invoice{}, fmt.Errorf("%w: %s (status %d)", ErrGateway, body.Detail, resp.StatusCode())
		}
		return Invoice{}, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode())
	}
	if body.RedirectURL == "" {
		return Invoice{}, fmt.Errorf("%w: missing redirect url", ErrGateway)
	}

	return Invoice{
		ID:          orderID,
		MovieID:     movieID,
		Amount:      amount,
		RedirectURL: body.RedirectURL,
	}, nil
}
