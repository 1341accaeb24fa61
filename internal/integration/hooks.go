package integration

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Invalidator schedules a ledger cache invalidation.
type Invalidator interface {
	EnqueueLedgerInvalidate(ctx context.Context, reason string) (*asynq.TaskInfo, error)
}

// Hooks turns source table changes into ledger cache invalidations.
type Hooks struct {
	invalidator Invalidator
	logger      *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(invalidator Invalidator, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{invalidator: invalidator, logger: logger}
}

// HandleSourceChange enqueues an invalidation when change touches a table the
// ledger reads. Changes to unrelated tables are ignored.
func (h *Hooks) HandleSourceChange(ctx context.Context, change SourceChange) error {
	if h == nil || h.invalidator == nil {
		return nil
	}
	reason, ok := reasonFor(change)
	if !ok {
		h.logger.DebugContext(ctx, "ignoring change to unrelated table", slog.String("table", change.Table))
		return nil
	}
	info, err := h.invalidator.EnqueueLedgerInvalidate(ctx, reason)
	if err != nil {
		return err
	}
	if info == nil {
		// An invalidation is already queued for this burst of writes.
		return nil
	}
	h.logger.DebugContext(ctx, "ledger invalidation enqueued", slog.String("reason", reason), slog.String("task_id", info.ID))
	return nil
}

// HandleNotification decodes a NOTIFY payload and forwards it.
func (h *Hooks) HandleNotification(ctx context.Context, payload string) error {
	change, err := decodeChange(payload)
	if err != nil {
		if errors.Is(err, errEmptyPayload) {
			return nil
		}
		return err
	}
	return h.HandleSourceChange(ctx, change)
}
