package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"payment-relay/internal/ledger"
	"payment-relay/internal/model"
	"payment-relay/internal/queue"
	"payment-relay/internal/summary"
)

// Handler holds the ingress HTTP dependencies. Recoverable processing
// conditions never surface here; the only failures a client sees are bad
// payloads and an unreachable store.
type Handler struct {
	queue   queue.Queue
	summary *summary.Service
	ledger  ledger.Ledger
}

func New(q queue.Queue, s *summary.Service, l ledger.Ledger) *Handler {
	return &Handler{queue: q, summary: s, ledger: l}
}

// RegisterRoutes registers all API routes on the given engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/payments", h.CreatePayment)
	r.GET("/payments-summary", h.PaymentsSummary)
	r.POST("/purge-payments", h.PurgePayments)
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
}

type paymentRequest struct {
	CorrelationID string  `json:"correlationId" binding:"required"`
	Amount        float64 `json:"amount"`
}

type paymentResponse struct {
	Payment model.Payment `json:"payment"`
	Status  string        `json:"status"`
}

// CreatePayment handles POST /payments: validate, enqueue, acknowledge.
// The actual charge happens asynchronously in the worker pool.
func (h *Handler) CreatePayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	correlationID, err := uuid.Parse(req.CorrelationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "correlationId must be a valid UUID"})
		return
	}
	if req.Amount < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must not be negative"})
		return
	}

	payment := model.Payment{
		CorrelationID: correlationID,
		Amount:        req.Amount,
	}
	if err := h.queue.Push(c.Request.Context(), model.NewMessage(payment)); err != nil {
		slog.Error("payment_enqueue_failed", "correlation_id", correlationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not queue payment"})
		return
	}

	slog.Info("payment_queued", "correlation_id", correlationID, "amount", req.Amount)
	c.JSON(http.StatusOK, paymentResponse{Payment: payment, Status: "queued"})
}

// PaymentsSummary handles GET /payments-summary with optional RFC3339
// from/to bounds.
func (h *Handler) PaymentsSummary(c *gin.Context) {
	from, ok := parseTimeParam(c, "from")
	if !ok {
		return
	}
	to, ok := parseTimeParam(c, "to")
	if !ok {
		return
	}

	resp, err := h.summary.Summary(c.Request.Context(), from, to)
	if err != nil {
		slog.Error("summary_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute summary"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PurgePayments handles POST /purge-payments, the administrative reset of
// the ledger.
func (h *Handler) PurgePayments(c *gin.Context) {
	if err := h.ledger.Clear(c.Request.Context()); err != nil {
		slog.Error("purge_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not purge payments"})
		return
	}
	slog.Info("payments_purged")
	c.String(http.StatusOK, "purged")
}

func parseTimeParam(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be RFC3339"})
		return nil, false
	}
	return &ts, true
}
