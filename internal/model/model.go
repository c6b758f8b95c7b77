package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Processor groups. The default processor is cheaper and is preferred;
// the fallback only takes traffic when the default is unavailable or slow.
const (
	GroupDefault  = "default"
	GroupFallback = "fallback"
)

// Payment is the lifecycle entity moving through the relay. The client
// supplies CorrelationID and Amount; RequestedAt is stamped when the payment
// is first dispatched to a processor, ProcessedAt and ProcessedBy when a
// processor accepts it.
type Payment struct {
	CorrelationID uuid.UUID  `json:"correlationId"`
	Amount        float64    `json:"amount"`
	RequestedAt   *time.Time `json:"requestedAt,omitempty"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
	ProcessedBy   string     `json:"processedBy,omitempty"`
}

// QueueMessage is the envelope a payment travels in on the queue. Every
// enqueue gets a fresh envelope ID; idempotency is keyed on the payment's
// correlation ID, never on the envelope.
type QueueMessage struct {
	ID      uuid.UUID `json:"id"`
	Payment Payment   `json:"payment"`
}

// NewMessage wraps a payment in a fresh envelope.
func NewMessage(p Payment) QueueMessage {
	return QueueMessage{ID: uuid.New(), Payment: p}
}

// RoundAmount formats a monetary amount with two-decimal precision,
// rounding half away from zero. This is the canonical stored form; amounts
// survive JSON round-trips as strings.
func RoundAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

// ProcessorSummary is the per-group aggregation result.
type ProcessorSummary struct {
	TotalRequests int64   `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

// SummaryResponse is the reconciliation summary over both processor groups.
type SummaryResponse struct {
	Default  ProcessorSummary `json:"default"`
	Fallback ProcessorSummary `json:"fallback"`
}
