package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"payment-relay/internal/config"
	"payment-relay/internal/health"
	"payment-relay/internal/model"
)

var (
	// ErrRejected reports a definitive 4xx refusal. The payment must not be
	// retried on this processor and the breaker must not count it.
	ErrRejected = errors.New("processor: payment rejected")

	// ErrUnavailable reports a 5xx, timeout, or connection failure. The
	// attempt may be retried and the breaker counts it.
	ErrUnavailable = errors.New("processor: unavailable")
)

// Client is the narrow egress surface to an external payment processor.
// Implementations are injected so tests can script outcomes.
type Client interface {
	// SubmitPayment POSTs the payment to {url}/payments. A nil return means
	// the processor accepted the charge.
	SubmitPayment(ctx context.Context, url string, p model.Payment) error
	// CheckHealth GETs {url}/payments/service-health.
	CheckHealth(ctx context.Context, url string) (health.Report, error)
}

// HTTPClient talks JSON over HTTP to the processors with a bounded timeout.
type HTTPClient struct {
	http *http.Client
}

// NewHTTPClient creates a client whose calls are bounded by the processor
// timeout.
func NewHTTPClient() *HTTPClient {
	return NewHTTPClientWithTimeout(config.ProcessorTimeout)
}

// NewHTTPClientWithTimeout creates a client with a custom timeout for
// testing.
func NewHTTPClientWithTimeout(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

func (c *HTTPClient) SubmitPayment(ctx context.Context, url string, p model.Payment) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("processor: marshal payment %s: %w", p.CorrelationID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/payments", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("processor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

func (c *HTTPClient) CheckHealth(ctx context.Context, url string) (health.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/payments/service-health", nil)
	if err != nil {
		return health.Report{}, fmt.Errorf("processor: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return health.Report{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return health.Report{}, fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode)
	}

	var report health.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return health.Report{}, fmt.Errorf("processor: decode health report: %w", err)
	}
	return report, nil
}
