package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Options tunes an Engine.
type Options struct {
	// StudioPrefix classifies invoices whose kind the source left unspecified.
	StudioPrefix string
	// Strict returns invariant violations instead of logging them.
	Strict bool
	// SeedWindowedOpening adds the customer's seed balance to replayed openings.
	SeedWindowedOpening bool
	Now                 func() time.Time
	Logger              *slog.Logger
	Metrics             *Metrics
}

// Engine computes customer ledgers from the injected sources. It never writes.
type Engine struct {
	sources    Sources
	normalizer Normalizer
	checker    invariantChecker
	seedOpen   bool
	now        func() time.Time
	logger     *slog.Logger
	metrics    *Metrics
}

// NewEngine validates the required sources and builds an Engine.
func NewEngine(sources Sources, opts Options) (*Engine, error) {
	switch {
	case sources.Invoices == nil:
		return nil, errors.New("ledger: invoice source required")
	case sources.Payments == nil:
		return nil, errors.New("ledger: payment source required")
	case sources.Customers == nil:
		return nil, errors.New("ledger: customer source required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		sources:    sources,
		normalizer: NewNormalizer(opts.StudioPrefix),
		checker:    invariantChecker{strict: opts.Strict, logger: logger, recorder: opts.Metrics},
		seedOpen:   opts.SeedWindowedOpening,
		now:        now,
		logger:     logger,
		metrics:    opts.Metrics,
	}, nil
}

func validate(customerID uuid.UUID, scope CompanyScope, window DateRange) error {
	if customerID == uuid.Nil {
		return invalidInput("customer id is required")
	}
	if scope.CompanyID == uuid.Nil {
		return invalidInput("company id is required")
	}
	if !window.From.IsZero() && !window.To.IsZero() && window.From.After(window.To) {
		return invalidInput("window start %s is after end %s", window.From.Format(time.DateOnly), window.To.Format(time.DateOnly))
	}
	return nil
}

// ComputeLedger builds every report for the customer over window.
func (e *Engine) ComputeLedger(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange) (result LedgerResult, err error) {
	defer func(start time.Time) { err = e.metrics.observe("ledger", start, err) }(time.Now())

	window = window.Normalized()
	if err := validate(customerID, scope, window); err != nil {
		return LedgerResult{}, err
	}
	plan := loadPlan{customer: window.From.IsZero() || e.seedOpen, events: true, items: true}
	snap, err := e.load(ctx, customerID, scope, window, plan)
	if err != nil {
		return LedgerResult{}, err
	}
	return e.build(ctx, customerID, scope, window, snap)
}

func (e *Engine) build(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange, snap Snapshot) (LedgerResult, error) {
	prior, inWindow := partition(e.normalizer.Normalize(snap), window)
	if inWindow == nil {
		inWindow = []Transaction{}
	}
	seed := decimal.Zero
	if snap.Customer != nil {
		seed = snap.Customer.OpeningBalance
	}
	opening := OpeningBalance(prior, window, seed, e.seedOpen)
	Compose(inWindow, opening)
	invoices := e.normalizer.BuildInvoices(snap, window)
	summary := Summarize(inWindow, opening, invoices)
	aging := Age(snap.Invoices, e.now())

	attrs := []any{slog.String("customer_id", customerID.String()), slog.String("company_id", scope.CompanyID.String())}
	if err := e.checker.report(ctx, checkLedger(inWindow, summary), attrs...); err != nil {
		return LedgerResult{}, err
	}
	if err := e.checker.report(ctx, checkAging(aging, OutstandingDue(snap.Invoices)), attrs...); err != nil {
		return LedgerResult{}, err
	}
	return LedgerResult{
		CustomerID:     customerID,
		Window:         window,
		OpeningBalance: opening,
		Transactions:   inWindow,
		Summary:        summary,
		Invoices:       invoices,
		Aging:          aging,
	}, nil
}

// ComputeLedgerSummary returns the window summary.
func (e *Engine) ComputeLedgerSummary(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange) (LedgerSummary, error) {
	result, err := e.ComputeLedger(ctx, customerID, scope, window)
	if err != nil {
		return LedgerSummary{}, err
	}
	return result.Summary, nil
}

// ComputeTransactions returns the window transactions with running balances.
func (e *Engine) ComputeTransactions(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange) ([]Transaction, error) {
	result, err := e.ComputeLedger(ctx, customerID, scope, window)
	if err != nil {
		return nil, err
	}
	return result.Transactions, nil
}

// ComputeInvoices returns the invoices dated inside window.
func (e *Engine) ComputeInvoices(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange) (invoices []Invoice, err error) {
	defer func(start time.Time) { err = e.metrics.observe("invoices", start, err) }(time.Now())

	window = window.Normalized()
	if err := validate(customerID, scope, window); err != nil {
		return nil, err
	}
	snap, err := e.load(ctx, customerID, scope, window, loadPlan{items: true})
	if err != nil {
		return nil, err
	}
	return e.normalizer.BuildInvoices(snap, window), nil
}

// ComputePayments returns the sale payments dated inside window.
func (e *Engine) ComputePayments(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange) (payments []Payment, err error) {
	defer func(start time.Time) { err = e.metrics.observe("payments", start, err) }(time.Now())

	window = window.Normalized()
	if err := validate(customerID, scope, window); err != nil {
		return nil, err
	}
	snap, err := e.load(ctx, customerID, scope, window, loadPlan{payments: true})
	if err != nil {
		return nil, err
	}
	return BuildPayments(snap, window), nil
}

// ComputeAgingReport buckets every outstanding invoice of the customer as of today.
func (e *Engine) ComputeAgingReport(ctx context.Context, customerID uuid.UUID, scope CompanyScope) (report AgingReport, err error) {
	defer func(start time.Time) { err = e.metrics.observe("aging", start, err) }(time.Now())

	if err := validate(customerID, scope, DateRange{}); err != nil {
		return AgingReport{}, err
	}
	snap, err := e.load(ctx, customerID, scope, DateRange{}, loadPlan{})
	if err != nil {
		return AgingReport{}, err
	}
	report = Age(snap.Invoices, e.now())
	v := checkAging(report, OutstandingDue(snap.Invoices))
	if err := e.checker.report(ctx, v, slog.String("customer_id", customerID.String())); err != nil {
		return AgingReport{}, err
	}
	return report, nil
}

// CustomerProfile returns the registry record with its display code and
// outstanding balance.
func (e *Engine) CustomerProfile(ctx context.Context, customerID uuid.UUID, scope CompanyScope) (profile CustomerProfile, err error) {
	defer func(start time.Time) { err = e.metrics.observe("profile", start, err) }(time.Now())

	if err := validate(customerID, scope, DateRange{}); err != nil {
		return CustomerProfile{}, err
	}
	snap, err := e.load(ctx, customerID, scope, DateRange{}, loadPlan{customer: true})
	if err != nil {
		return CustomerProfile{}, err
	}
	c := snap.Customer
	outstanding := OutstandingDue(snap.Invoices)
	if outstanding.IsZero() {
		outstanding = c.OpeningBalance
	}
	return CustomerProfile{
		ID:                 c.ID,
		Code:               CustomerCode(c.ID),
		Name:               c.Name,
		Phone:              c.Phone,
		Email:              c.Email,
		City:               c.City,
		Address:            c.Address,
		CreditLimit:        c.CreditLimit,
		OpeningBalance:     c.OpeningBalance,
		OutstandingBalance: outstanding,
	}, nil
}

// CustomerCode renders the display code of a customer.
func CustomerCode(id uuid.UUID) string {
	return "CUS-" + strings.ToUpper(id.String()[:8])
}
