package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCreateInvoice(t *testing.T) {
	t.Parallel()

	var got createInvoiceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/invoices", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(createInvoiceResponse{
			RedirectURL: "https://pay.example/checkout/abc",
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "sk-test", Timeout: 5 * time.Second})
	inv, err := client.CreateInvoice(context.Background(), "movie-42", 4.99)
	require.NoError(t, err)

	require.Equal(t, "movie-42", inv.MovieID)
	require.InEpsilon(t, 4.99, inv.Amount, 1e-9)
	require.Equal(t, "https://pay.example/checkout/abc", inv.RedirectURL)

	// The order reference is a fresh UUID passed through as the
	// invoice id.
	_, err = uuid.Parse(inv.ID)
	require.NoError(t, err)
	require.Equal(t, inv.ID, got.OrderID)
	require.InEpsilon(t, 4.99, got.Amount, 1e-9)
}

func TestCreateInvoiceGatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(createInvoiceResponse{Detail: "card declined"})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.CreateInvoice(context.Background(), "movie-42", 4.99)
	require.ErrorIs(t, err, ErrGateway)
	require.Contains(t, err.Error(), "card declined")
}

func TestCreateInvoiceValidation(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{BaseURL: "http://unused.example"})

	_, err := client.CreateInvoice(context.Background(), "", 4.99)
	require.Error(t, err)

	_, err = client.CreateInvoice(context.Background(), "movie-42", 0)
	require.Error(t, err)
}

func TestCreateInvoiceMissingRedirect(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(createInvoiceResponse{})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.CreateInvoice(context.Background(), "movie-42", 4.99)
	require.ErrorIs(t, err, ErrGateway)
}
