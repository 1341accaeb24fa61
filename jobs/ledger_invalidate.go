package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// LedgerInvalidator bumps the ledger cache version.
type LedgerInvalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// LedgerInvalidateJob drops every cached ledger after source data changes.
type LedgerInvalidateJob struct {
	Ledger  LedgerInvalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerInvalidateJob wires dependencies for the invalidation handler.
func NewLedgerInvalidateJob(invalidator LedgerInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerInvalidateJob {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	return &LedgerInvalidateJob{Ledger: invalidator, Logger: logger, Metrics: metrics}
}

// Handle processes ledger invalidation tasks.
func (j *LedgerInvalidateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger invalidate: handler not configured")
	}
	var payload LedgerInvalidatePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := j.Metrics.Track(TaskLedgerInvalidate)
	version, err := j.Ledger.Invalidate(ctx)
	if err != nil {
		j.Logger.Error("invalidate ledger cache", slog.String("reason", payload.Reason), slog.Any("error", err))
		return tracker.End(err)
	}
	j.Logger.Info("ledger cache invalidated", slog.String("reason", payload.Reason), slog.Int64("version", version))
	return tracker.End(nil)
}
