package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-interiors/meridian-quotes/internal/jobs"
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
)

// TaskTypeTotalsSweep recomputes cached totals for open quotations. Cached
// aggregates can drift behind a catalog or rules change; the sweep brings
// them back in line with a fresh recompute.
const TaskTypeTotalsSweep = "quotations:totals-sweep"

// TotalsSweepPayload bounds one sweep run.
type TotalsSweepPayload struct {
	BatchSize int `json:"batchSize"`
}

// NewTotalsSweepTask constructs an Asynq task.
func NewTotalsSweepTask(payload TotalsSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTotalsSweep, data), nil
}

// QuotationSweeper is the slice of the quotes service the sweep drives.
type QuotationSweeper interface {
	ListQuotations(ctx context.Context, req quotes.ListQuotationsRequest) ([]quotes.Quotation, error)
	Recompute(ctx context.Context, quotationID int64) (pricing.Allocation, error)
}

// TotalsSweepJob recomputes open quotations in batches.
type TotalsSweepJob struct {
	sweeper QuotationSweeper
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewTotalsSweepJob builds TotalsSweepJob instance.
func NewTotalsSweepJob(sweeper QuotationSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *TotalsSweepJob {
	return &TotalsSweepJob{sweeper: sweeper, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeTotalsSweep tasks. Approved quotations are left
// alone: their figures come from the frozen snapshot.
func (j *TotalsSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload TotalsSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 100
	}
	tracker := j.metrics.Track(TaskTypeTotalsSweep)
	return tracker.End(j.sweep(ctx, payload.BatchSize))
}

func (j *TotalsSweepJob) sweep(ctx context.Context, batchSize int) error {
	var swept, failed int
	for _, status := range []quotes.QuotationStatus{quotes.StatusDraft, quotes.StatusSent} {
		open, err := j.sweeper.ListQuotations(ctx, quotes.ListQuotationsRequest{Status: status, Limit: batchSize})
		if err != nil {
			return err
		}
		for _, q := range open {
			if _, err := j.sweeper.Recompute(ctx, q.ID); err != nil {
				failed++
				j.logger.Warn("totals sweep recompute",
					slog.Int64("quotationId", q.ID),
					slog.Any("error", err),
				)
				continue
			}
			swept++
		}
	}
	j.logger.Info("totals sweep finished", slog.Int("swept", swept), slog.Int("failed", failed))
	return nil
}
