package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrRejected means the provider refused the request. Retrying the same request will not help.
	ErrRejected = errors.New("payment provider rejected request")
	// ErrUnavailable means the provider could not be reached or failed internally.
	ErrUnavailable = errors.New("payment provider unavailable")
)

type ConfirmRequest struct {
	OrderID    string `json:"orderId"`
	PaymentKey string `json:"paymentKey"`
	Amount     int64  `json:"amount"`
}

type SettleRequest struct {
	OrderID    string `json:"orderId"`
	PaymentKey string `json:"paymentKey"`
	ContractID int64  `json:"contractId"`
	Amount     int64  `json:"amount"`
	Fee        int64  `json:"fee"`
	Payout     int64  `json:"payout"`
}

type ProviderError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	if e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests {
		return ErrUnavailable
	}
	return ErrRejected
}

// HTTPProvider talks to the payment gateway REST API.
type HTTPProvider struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewHTTPProvider(baseURL, secretKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) ConfirmPayment(ctx context.Context, req ConfirmRequest) error {
	return p.post(ctx, "/v1/payments/confirm", req.OrderID, req)
}

// Settle uses the order id as idempotency key so a retried settlement pays out once.
func (p *HTTPProvider) Settle(ctx context.Context, req SettleRequest) error {
	return p.post(ctx, "/v1/settlements", "settle-"+req.OrderID, req)
}

func (p *HTTPProvider) post(ctx context.Context, path, idempotencyKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.SetBasicAuth(p.secretKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	perr := &ProviderError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(data) > 0 {
		_ = json.Unmarshal(data, perr)
	}
	return perr
}
