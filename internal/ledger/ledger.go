package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"payment-relay/internal/model"
)

const (
	// processedSetKey is the global time index: a sorted set of processed
	// correlation IDs scored by requested_at in nanoseconds.
	processedSetKey = "processed_payments"

	// recordKeyPrefix prefixes the per-payment hash, keyed by group and
	// correlation ID.
	recordKeyPrefix = "payment_summary"
)

var (
	// ErrStoreUnavailable reports that the backing store could not be
	// reached.
	ErrStoreUnavailable = errors.New("ledger: store unavailable")

	// ErrNotFound reports a missing per-payment record.
	ErrNotFound = errors.New("ledger: payment not found")
)

// Ledger is the durable, time-indexed store of processed payments. Once a
// correlation ID is saved it is permanently considered processed; the worker
// consults IsProcessed before every attempt to keep at-least-once delivery
// idempotent.
type Ledger interface {
	// Save writes the per-payment record and the time-index entry in a
	// single atomic multi-op.
	Save(ctx context.Context, p model.Payment) error
	// IsProcessed reports whether the correlation ID is in the time index.
	IsProcessed(ctx context.Context, correlationID uuid.UUID) (bool, error)
	// RangeSummary counts and sums the payments processed by group with
	// requested_at inside [from, to], bounds inclusive.
	RangeSummary(ctx context.Context, group string, from, to time.Time) (int64, float64, error)
	// Get loads one per-payment record.
	Get(ctx context.Context, group string, correlationID uuid.UUID) (*model.Payment, error)
	// Clear removes every record and the time index.
	Clear(ctx context.Context) error
}

// RedisLedger stores payments as hashes at payment_summary:{group}:{id}
// plus the processed_payments sorted set.
type RedisLedger struct {
	rdb *redis.Client
}

func NewRedisLedger(rdb *redis.Client) *RedisLedger {
	return &RedisLedger{rdb: rdb}
}

func recordKey(group, correlationID string) string {
	return recordKeyPrefix + ":" + group + ":" + correlationID
}

func (l *RedisLedger) Save(ctx context.Context, p model.Payment) error {
	if p.RequestedAt == nil || p.ProcessedAt == nil || p.ProcessedBy == "" {
		return fmt.Errorf("ledger: payment %s is not fully processed", p.CorrelationID)
	}

	id := p.CorrelationID.String()

	// One MULTI/EXEC so a crash cannot leave the ID in the index without
	// its record or vice versa.
	pipe := l.rdb.TxPipeline()
	pipe.HSet(ctx, recordKey(p.ProcessedBy, id),
		"amount", model.RoundAmount(p.Amount),
		"requested_at", p.RequestedAt.UTC().Format(time.RFC3339Nano),
		"processed_at", p.ProcessedAt.UTC().Format(time.RFC3339Nano),
		"processed_by", p.ProcessedBy,
	)
	pipe.ZAdd(ctx, processedSetKey, redis.Z{
		Score:  float64(p.RequestedAt.UnixNano()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrStoreUnavailable, id, err)
	}
	return nil
}

func (l *RedisLedger) IsProcessed(ctx context.Context, correlationID uuid.UUID) (bool, error) {
	err := l.rdb.ZScore(ctx, processedSetKey, correlationID.String()).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: zscore: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}

func (l *RedisLedger) RangeSummary(ctx context.Context, group string, from, to time.Time) (int64, float64, error) {
	ids, err := l.rdb.ZRangeByScore(ctx, processedSetKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixNano(), 10),
		Max: strconv.FormatInt(to.UnixNano(), 10),
	}).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: zrangebyscore: %v", ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	pipe := l.rdb.Pipeline()
	amounts := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		amounts[i] = pipe.HGet(ctx, recordKey(group, id), "amount")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, fmt.Errorf("%w: summary pipeline: %v", ErrStoreUnavailable, err)
	}

	var count int64
	var total float64
	for _, cmd := range amounts {
		raw, err := cmd.Result()
		if err == redis.Nil {
			// Present in the index but processed by the other group.
			continue
		}
		if err != nil {
			return 0, 0, fmt.Errorf("%w: hget amount: %v", ErrStoreUnavailable, err)
		}
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("ledger: unparseable amount %q for group %s: %w", raw, group, err)
		}
		count++
		total += amount
	}
	return count, total, nil
}

func (l *RedisLedger) Get(ctx context.Context, group string, correlationID uuid.UUID) (*model.Payment, error) {
	fields, err := l.rdb.HGetAll(ctx, recordKey(group, correlationID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: hgetall: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, group, correlationID)
	}

	amount, err := strconv.ParseFloat(fields["amount"], 64)
	if err != nil {
		return nil, fmt.Errorf("ledger: unparseable amount %q: %w", fields["amount"], err)
	}

	p := &model.Payment{
		CorrelationID: correlationID,
		Amount:        amount,
		ProcessedBy:   fields["processed_by"],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["requested_at"]); err == nil {
		p.RequestedAt = &ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["processed_at"]); err == nil {
		p.ProcessedAt = &ts
	}
	return p, nil
}

func (l *RedisLedger) Clear(ctx context.Context) error {
	ids, err := l.rdb.ZRange(ctx, processedSetKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("%w: zrange: %v", ErrStoreUnavailable, err)
	}

	pipe := l.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, recordKey(model.GroupDefault, id))
		pipe.Del(ctx, recordKey(model.GroupFallback, id))
	}
	pipe.Del(ctx, processedSetKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrStoreUnavailable, err)
	}
	return nil
}
