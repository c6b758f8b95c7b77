package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"payment-relay/internal/breaker"
	"payment-relay/internal/config"
	"payment-relay/internal/ledger"
	"payment-relay/internal/model"
	"payment-relay/internal/processor"
	"payment-relay/internal/queue"
	"payment-relay/internal/router"
)

// Outcome classifies one payment attempt.
type Outcome int

const (
	// Processed: the processor accepted the charge and the ledger recorded
	// it. The message is dropped.
	Processed Outcome = iota
	// Rejected: the processor refused the payment definitively (4xx). The
	// message is dropped; retrying a caller bug is never safe.
	Rejected
	// TransientFailure: 5xx, timeout, connection error, or a failed ledger
	// save. The message is re-enqueued.
	TransientFailure
	// Skipped: the breaker short-circuited before the processor was
	// contacted. The message is re-enqueued.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Processed:
		return "processed"
	case Rejected:
		return "rejected"
	case TransientFailure:
		return "transient_failure"
	default:
		return "skipped"
	}
}

// Worker is one long-running consumer of the payment queue. A pool of
// identical workers shares the queue, the ledger, and the router; each loop
// iteration pops, dedupes, routes, attempts, and either drops or
// re-enqueues.
type Worker struct {
	queue   queue.Queue
	ledger  ledger.Ledger
	router  *router.Router
	client  processor.Client
	backoff time.Duration
}

func New(q queue.Queue, l ledger.Ledger, r *router.Router, c processor.Client) *Worker {
	return &Worker{
		queue:   q,
		ledger:  l,
		router:  r,
		client:  c,
		backoff: config.WorkerBackoff,
	}
}

// Run loops until ctx is cancelled. Recoverable faults stay inside the
// loop: store outages back off and retry, poisoned messages are discarded,
// unprocessable payments go back to the tail of the queue.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := w.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, queue.ErrMalformed) {
				// The entry is already off the queue; dropping it is the
				// only safe move.
				slog.Warn("poisoned_message_discarded", "error", err)
				continue
			}
			slog.Error("queue_pop_failed", "error", err)
			w.sleep(ctx)
			continue
		}
		if msg == nil {
			continue
		}

		w.handle(ctx, *msg)
	}
}

func (w *Worker) handle(ctx context.Context, msg model.QueueMessage) {
	correlationID := msg.Payment.CorrelationID

	done, err := w.ledger.IsProcessed(ctx, correlationID)
	if err != nil {
		// Proceed and attempt anyway: the ledger save is idempotent per
		// correlation ID and the processors deduplicate on it too.
		slog.Error("dedupe_check_failed", "correlation_id", correlationID, "error", err)
	}
	if done {
		slog.Debug("duplicate_dropped", "correlation_id", correlationID, "envelope_id", msg.ID)
		return
	}

	choice, ok := w.router.Select()
	if !ok {
		slog.Debug("no_processor_available", "correlation_id", correlationID)
		w.requeue(ctx, msg.Payment)
		return
	}

	outcome := w.Attempt(ctx, msg.Payment, choice)
	switch outcome {
	case Processed:
		slog.Info("payment_processed",
			"correlation_id", correlationID,
			"processor", choice.Name,
		)
	case Rejected:
		slog.Warn("payment_rejected",
			"correlation_id", correlationID,
			"processor", choice.Name,
		)
	case TransientFailure, Skipped:
		slog.Warn("payment_requeued",
			"correlation_id", correlationID,
			"processor", choice.Name,
			"outcome", outcome.String(),
		)
		w.requeue(ctx, msg.Payment)
	}
}

// Attempt makes one charge attempt against the chosen processor and, on
// success, persists the payment. 4xx refusals pass through the breaker as
// ignored outcomes, leaving its window untouched: they are the caller's
// fault, not the processor's.
func (w *Worker) Attempt(ctx context.Context, p model.Payment, choice router.Choice) Outcome {
	requestedAt := time.Now().UTC()
	p.RequestedAt = &requestedAt

	err := choice.Breaker.Do(func() error {
		err := w.client.SubmitPayment(ctx, choice.URL, p)
		if errors.Is(err, processor.ErrRejected) {
			return fmt.Errorf("%w: %w", breaker.ErrIgnored, err)
		}
		return err
	})

	switch {
	case errors.Is(err, breaker.ErrOpen):
		return Skipped
	case errors.Is(err, processor.ErrRejected):
		return Rejected
	case err != nil:
		return TransientFailure
	}

	processedAt := time.Now().UTC()
	p.ProcessedAt = &processedAt
	p.ProcessedBy = choice.Name

	if err := w.ledger.Save(ctx, p); err != nil {
		// The charge went through but the record did not land. Re-enqueue;
		// the processor deduplicates by correlation ID on replay.
		slog.Error("ledger_save_failed", "correlation_id", p.CorrelationID, "error", err)
		return TransientFailure
	}
	return Processed
}

// requeue puts the payment back at the tail under a fresh envelope ID,
// retrying with backoff while the store is unreachable so a popped payment
// is not lost to a blip. Re-enqueues are unbounded; the ledger's
// idempotency check keeps replays harmless.
func (w *Worker) requeue(ctx context.Context, p model.Payment) {
	p.RequestedAt = nil
	p.ProcessedAt = nil
	p.ProcessedBy = ""
	msg := model.NewMessage(p)
	for {
		err := w.queue.Push(ctx, msg)
		if err == nil {
			return
		}
		slog.Error("requeue_failed", "correlation_id", p.CorrelationID, "error", err)
		w.sleep(ctx)
		if ctx.Err() != nil {
			slog.Error("requeue_abandoned_on_shutdown", "correlation_id", p.CorrelationID)
			return
		}
	}
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.backoff):
	}
}
