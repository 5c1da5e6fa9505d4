package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProviderSettle(t *testing.T) {
	var got SettleRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/settlements", r.URL.Path)
		assert.Equal(t, "settle-order-1", r.Header.Get("Idempotency-Key"))
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewHTTPProvider(server.URL+"/", "sk_test", time.Second)
	err := p.Settle(context.Background(), SettleRequest{OrderID: "order-1", Amount: 100, Fee: 10, Payout: 90})
	require.NoError(t, err)
	assert.Equal(t, int64(90), got.Payout)
}

func TestHTTPProviderErrors(t *testing.T) {
	status := http.StatusBadRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":"INVALID_AMOUNT","message":"amount differs"}`))
	}))
	defer server.Close()
	p := NewHTTPProvider(server.URL, "sk_test", time.Second)

	err := p.ConfirmPayment(context.Background(), ConfirmRequest{OrderID: "o", PaymentKey: "k", Amount: 1})
	require.ErrorIs(t, err, ErrRejected)
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "INVALID_AMOUNT", perr.Code)

	status = http.StatusInternalServerError
	err = p.ConfirmPayment(context.Background(), ConfirmRequest{OrderID: "o"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPProviderUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p := NewHTTPProvider(url, "sk_test", time.Second)
	err := p.Settle(context.Background(), SettleRequest{OrderID: "o"})
	require.ErrorIs(t, err, ErrUnavailable)
}
