package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/pgstore"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const defaultWarmupLimit = 200

// CustomerLister finds customers worth warming.
type CustomerLister interface {
	OutstandingCustomers(ctx context.Context, limit int) ([]pgstore.CustomerRef, error)
}

// LedgerWarmer computes and caches ledger reports.
type LedgerWarmer interface {
	Aging(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope) (ledger.AgingReport, error)
	Ledger(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) (ledger.LedgerResult, error)
}

// LedgerWarmupJob pre-populates the ledger cache for customers with open balances.
type LedgerWarmupJob struct {
	Ledger      LedgerWarmer
	Customers   CustomerLister
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
	clock       func() time.Time
}

// NewLedgerWarmupJob wires dependencies for the warmup handler.
func NewLedgerWarmupJob(warmer LedgerWarmer, customers CustomerLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerWarmupJob {
	return &LedgerWarmupJob{
		Ledger:      warmer,
		Customers:   customers,
		Logger:      logger,
		Metrics:     metrics,
		Concurrency: 4,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes ledger warmup tasks. A customer that fails to compute is
// logged and skipped; the run fails only when customers cannot be listed.
func (j *LedgerWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Ledger == nil || j.Customers == nil {
		return errors.New("ledger warmup: handler not configured")
	}
	var payload LedgerWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultWarmupLimit
	}

	tracker := j.metrics().Track(TaskLedgerWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("limit", payload.Limit))
	logger.Info("starting ledger warmup")

	customers, err := j.Customers.OutstandingCustomers(ctx, payload.Limit)
	if err != nil {
		logger.Error("load warmup customers", slog.Any("error", err))
		return err
	}
	if len(customers) == 0 {
		logger.Info("no customers with outstanding balances")
		return nil
	}

	now := j.now()
	window := ledger.DateRange{
		From: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
		To:   ledger.Day(now),
	}

	var warmed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency())
	for _, ref := range customers {
		g.Go(func() error {
			if err := j.warmCustomer(gctx, ref, window); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				logger.Warn("warm customer",
					slog.String("company_id", ref.CompanyID.String()),
					slog.String("customer_id", ref.CustomerID.String()),
					slog.Any("error", err),
				)
				return nil
			}
			warmed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	j.metrics().AddWarmed(TaskLedgerWarmup, "ok", int(warmed.Load()))
	j.metrics().AddWarmed(TaskLedgerWarmup, "failed", int(failed.Load()))
	logger.Info("completed ledger warmup",
		slog.Int64("warmed", warmed.Load()),
		slog.Int64("failed", failed.Load()),
		slog.Duration("duration", time.Since(now)),
	)
	return nil
}

func (j *LedgerWarmupJob) warmCustomer(ctx context.Context, ref pgstore.CustomerRef, window ledger.DateRange) error {
	customerCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	scope := ledger.CompanyScope{CompanyID: ref.CompanyID}
	if _, err := j.Ledger.Aging(customerCtx, ref.CustomerID, scope); err != nil {
		return err
	}
	if _, err := j.Ledger.Ledger(customerCtx, ref.CustomerID, scope, window); err != nil {
		return err
	}
	return nil
}

func (j *LedgerWarmupJob) concurrency() int {
	if j.Concurrency > 0 {
		return j.Concurrency
	}
	return 1
}

func (j *LedgerWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerWarmup))
	}
	return slog.Default().With(slog.String("job", TaskLedgerWarmup))
}

func (j *LedgerWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
