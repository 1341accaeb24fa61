package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service serves ledger reports through the versioned cache.
type Service struct {
	engine *Engine
	cache  *Cache
	logger *slog.Logger
}

// NewService wires an Engine with a Cache helper. cache may be nil.
func NewService(engine *Engine, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, cache: cache, logger: logger}
}

func (s *Service) key(ctx context.Context, op string, customerID uuid.UUID, scope CompanyScope, window DateRange) (string, error) {
	window = window.Normalized()
	return s.cache.BuildKey(ctx,
		"ledger", op,
		scope.CompanyID.String(), scope.BranchToken(),
		customerID.String(),
		dayToken(window.From), dayToken(window.To),
		dayToken(s.engine.now()),
	)
}

func dayToken(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func cached[T any](ctx context.Context, s *Service, op string, customerID uuid.UUID, scope CompanyScope, window DateRange, load func(context.Context) (T, error)) (T, error) {
	if err := validate(customerID, scope, window.Normalized()); err != nil {
		var zero T
		return zero, err
	}
	key, err := s.key(ctx, op, customerID, scope, window)
	if err != nil {
		s.logger.WarnContext(ctx, "ledger cache unavailable", slog.String("op", op), slog.Any("error", err))
		return load(ctx)
	}
	return fetchJSON(ctx, s.cache, key, load)
}

// Ledger returns the full ledger result.
func (s *Service) Ledger(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange) (LedgerResult, error) {
	return cached(ctx, s, "ledger", customerID, scope, window, func(ctx context.Context) (LedgerResult, error) {
		return s.engine.ComputeLedger(ctx, customerID, scope, window)
	})
}

// Summary returns the window summary.
func (s *Service) Summary(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange) (LedgerSummary, error) {
	return cached(ctx, s, "summary", customerID, scope, window, func(ctx context.Context) (LedgerSummary, error) {
		return s.engine.ComputeLedgerSummary(ctx, customerID, scope, window)
	})
}

// Transactions returns the window transactions.
func (s *Service) Transactions(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange) ([]Transaction, error) {
	return cached(ctx, s, "transactions", customerID, scope, window, func(ctx context.Context) ([]Transaction, error) {
		return s.engine.ComputeTransactions(ctx, customerID, scope, window)
	})
}

// Invoices returns the invoice view.
func (s *Service) Invoices(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange) ([]Invoice, error) {
	return cached(ctx, s, "invoices", customerID, scope, window, func(ctx context.Context) ([]Invoice, error) {
		return s.engine.ComputeInvoices(ctx, customerID, scope, window)
	})
}

// Payments returns the payments view.
func (s *Service) Payments(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange) ([]Payment, error) {
	return cached(ctx, s, "payments", customerID, scope, window, func(ctx context.Context) ([]Payment, error) {
		return s.engine.ComputePayments(ctx, customerID, scope, window)
	})
}

// Aging returns the aging report as of today.
func (s *Service) Aging(ctx context.Context, customerID uuid.UUID, scope CompanyScope) (AgingReport, error) {
	return cached(ctx, s, "aging", customerID, scope, DateRange{}, func(ctx context.Context) (AgingReport, error) {
		return s.engine.ComputeAgingReport(ctx, customerID, scope)
	})
}

// Profile returns the customer profile.
func (s *Service) Profile(ctx context.Context, customerID uuid.UUID, scope CompanyScope) (CustomerProfile, error) {
	return cached(ctx, s, "profile", customerID, scope, DateRange{}, func(ctx context.Context) (CustomerProfile, error) {
		return s.engine.CustomerProfile(ctx, customerID, scope)
	})
}

// Invalidate bumps the cache version so every cached report is recomputed.
func (s *Service) Invalidate(ctx context.Context) (int64, error) {
	return s.cache.Bump(ctx)
}
