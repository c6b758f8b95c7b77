package summary

import (
	"context"
	"time"

	"payment-relay/internal/config"
	"payment-relay/internal/ledger"
	"payment-relay/internal/model"
)

// Service answers the reconciliation summary over both processor groups by
// delegating range aggregation to the ledger.
type Service struct {
	ledger ledger.Ledger
}

func New(l ledger.Ledger) *Service {
	return &Service{ledger: l}
}

// Summary aggregates per group over [from, to], bounds inclusive. Omitted
// bounds default to a window of SummaryWindow either side of now.
func (s *Service) Summary(ctx context.Context, from, to *time.Time) (model.SummaryResponse, error) {
	now := time.Now().UTC()
	fromTS := now.Add(-config.SummaryWindow)
	toTS := now.Add(config.SummaryWindow)
	if from != nil {
		fromTS = from.UTC()
	}
	if to != nil {
		toTS = to.UTC()
	}

	defaultCount, defaultTotal, err := s.ledger.RangeSummary(ctx, model.GroupDefault, fromTS, toTS)
	if err != nil {
		return model.SummaryResponse{}, err
	}
	fallbackCount, fallbackTotal, err := s.ledger.RangeSummary(ctx, model.GroupFallback, fromTS, toTS)
	if err != nil {
		return model.SummaryResponse{}, err
	}

	return model.SummaryResponse{
		Default: model.ProcessorSummary{
			TotalRequests: defaultCount,
			TotalAmount:   defaultTotal,
		},
		Fallback: model.ProcessorSummary{
			TotalRequests: fallbackCount,
			TotalAmount:   fallbackTotal,
		},
	}, nil
}
