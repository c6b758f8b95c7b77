package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-relay/internal/ledger"
	"payment-relay/internal/model"
	"payment-relay/internal/queue"
	"payment-relay/internal/summary"
)

type fakeQueue struct {
	mu       sync.Mutex
	messages []model.QueueMessage
	pushErr  error
}

func (q *fakeQueue) Push(ctx context.Context, msg model.QueueMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pushErr != nil {
		return q.pushErr
	}
	q.messages = append(q.messages, msg)
	return nil
}

func (q *fakeQueue) Pop(ctx context.Context) (*model.QueueMessage, error) {
	return nil, nil
}

type fakeLedger struct {
	count    int64
	total    float64
	rangeErr error
	clearErr error
	cleared  bool
}

func (l *fakeLedger) Save(ctx context.Context, p model.Payment) error { return nil }

func (l *fakeLedger) IsProcessed(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (l *fakeLedger) RangeSummary(ctx context.Context, group string, from, to time.Time) (int64, float64, error) {
	if l.rangeErr != nil {
		return 0, 0, l.rangeErr
	}
	if group == model.GroupDefault {
		return l.count, l.total, nil
	}
	return 0, 0, nil
}

func (l *fakeLedger) Get(ctx context.Context, group string, id uuid.UUID) (*model.Payment, error) {
	return nil, ledger.ErrNotFound
}

func (l *fakeLedger) Clear(ctx context.Context) error {
	if l.clearErr != nil {
		return l.clearErr
	}
	l.cleared = true
	return nil
}

func newTestServer(q *fakeQueue, l *fakeLedger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	New(q, summary.New(l), l).RegisterRoutes(engine)
	return engine
}

func postJSON(engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	return rec
}

func TestCreatePayment_QueuesAndAcknowledges(t *testing.T) {
	q := &fakeQueue{}
	engine := newTestServer(q, &fakeLedger{})

	rec := postJSON(engine, "/payments",
		`{"correlationId": "7b3739e4-5be8-4f98-84a7-a13fd5984059", "amount": 1.00}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Payment model.Payment `json:"payment"`
		Status  string        `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, "7b3739e4-5be8-4f98-84a7-a13fd5984059", resp.Payment.CorrelationID.String())

	require.Len(t, q.messages, 1)
	assert.Equal(t, 1.00, q.messages[0].Payment.Amount)
	assert.NotEqual(t, uuid.Nil, q.messages[0].ID)
	assert.Empty(t, q.messages[0].Payment.ProcessedBy, "lifecycle fields are stamped by the worker, not ingress")
}

func TestCreatePayment_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"correlationId": `},
		{"missing correlation id", `{"amount": 1.00}`},
		{"non-uuid correlation id", `{"correlationId": "not-a-uuid", "amount": 1.00}`},
		{"negative amount", `{"correlationId": "7b3739e4-5be8-4f98-84a7-a13fd5984059", "amount": -5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{}
			engine := newTestServer(q, &fakeLedger{})

			rec := postJSON(engine, "/payments", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, q.messages, "rejected requests must have no side effect")
		})
	}
}

func TestCreatePayment_QueueUnavailable(t *testing.T) {
	q := &fakeQueue{pushErr: queue.ErrStoreUnavailable}
	engine := newTestServer(q, &fakeLedger{})

	rec := postJSON(engine, "/payments",
		`{"correlationId": "7b3739e4-5be8-4f98-84a7-a13fd5984059", "amount": 1.00}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPaymentsSummary_ReturnsCamelCaseTotals(t *testing.T) {
	l := &fakeLedger{count: 2, total: 3.5}
	engine := newTestServer(&fakeQueue{}, l)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/payments-summary?from=2026-08-01T00:00:00Z&to=2026-08-24T00:00:00Z", nil)
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var fields map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	assert.Equal(t, 2.0, fields["default"]["totalRequests"])
	assert.Equal(t, 3.5, fields["default"]["totalAmount"])
	assert.Equal(t, 0.0, fields["fallback"]["totalRequests"])
}

func TestPaymentsSummary_OptionalBounds(t *testing.T) {
	engine := newTestServer(&fakeQueue{}, &fakeLedger{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/payments-summary", nil)
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentsSummary_BadBounds(t *testing.T) {
	engine := newTestServer(&fakeQueue{}, &fakeLedger{})

	for _, query := range []string{"?from=yesterday", "?to=13/01/2026"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payments-summary"+query, nil)
		engine.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %s", query)
	}
}

func TestPaymentsSummary_LedgerUnavailable(t *testing.T) {
	l := &fakeLedger{rangeErr: ledger.ErrStoreUnavailable}
	engine := newTestServer(&fakeQueue{}, l)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/payments-summary", nil)
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPurgePayments(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		l := &fakeLedger{}
		engine := newTestServer(&fakeQueue{}, l)

		rec := postJSON(engine, "/purge-payments", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "purged", rec.Body.String())
		assert.True(t, l.cleared)
	})

	t.Run("failure", func(t *testing.T) {
		l := &fakeLedger{clearErr: ledger.ErrStoreUnavailable}
		engine := newTestServer(&fakeQueue{}, l)

		rec := postJSON(engine, "/purge-payments", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHealthz(t *testing.T) {
	engine := newTestServer(&fakeQueue{}, &fakeLedger{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
