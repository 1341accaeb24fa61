package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// loadPlan selects which sources a computation reads.
type loadPlan struct {
	customer bool
	events   bool
	payments bool
	items    bool
}

// load fans out to the sources concurrently. Parent records are read
// unbounded so opening balances can be replayed; dependants are bounded by
// the window end. Every goroutine owns its own snapshot slot.
func (e *Engine) load(ctx context.Context, customerID uuid.UUID, scope CompanyScope, window DateRange, plan loadPlan) (Snapshot, error) {
	var snap Snapshot
	var childRange *DateRange
	if !window.To.IsZero() {
		childRange = &DateRange{To: window.To}
	}

	g, ctx := errgroup.WithContext(ctx)

	if plan.customer {
		g.Go(func() error {
			customer, err := e.sources.Customers.Customer(ctx, customerID, scope)
			if err != nil {
				if errors.Is(err, ErrCustomerNotFound) {
					return err
				}
				return e.wrap(SourceCustomers, err)
			}
			snap.Customer = &customer
			return nil
		})
	}

	g.Go(func() error {
		invoices, err := e.sources.Invoices.Invoices(ctx, customerID, scope, nil)
		if err != nil {
			return e.wrap(SourceInvoices, err)
		}
		snap.Invoices = invoices
		withPayments := plan.events || plan.payments
		if !withPayments && !plan.items {
			return nil
		}
		ids := invoiceIDs(invoices)
		if len(ids) == 0 {
			return nil
		}

		sub, subCtx := errgroup.WithContext(ctx)
		if withPayments {
			sub.Go(func() error {
				payments, err := e.sources.Payments.Payments(subCtx, ids, childRange)
				if err != nil {
					return e.wrap(SourcePayments, err)
				}
				snap.Payments = payments
				return nil
			})
		}
		if !plan.events && !plan.items {
			return sub.Wait()
		}
		if e.sources.StageCosts != nil {
			sub.Go(func() error {
				costs, err := e.sources.StageCosts.ProductionStageCosts(subCtx, ids)
				if err != nil {
					return e.optional(subCtx, SourceStageCosts, err)
				}
				snap.StageCosts = costs
				return nil
			})
		} else {
			e.missing(ctx, SourceStageCosts)
		}
		if plan.items {
			if e.sources.InvoiceItems != nil {
				sub.Go(func() error {
					items, err := e.sources.InvoiceItems.InvoiceItems(subCtx, ids)
					if err != nil {
						return e.optional(subCtx, SourceInvoiceItems, err)
					}
					snap.Items = items
					return nil
				})
			} else {
				e.missing(ctx, SourceInvoiceItems)
			}
		}
		return sub.Wait()
	})

	if plan.events {
		if e.sources.Returns != nil {
			g.Go(func() error {
				returns, err := e.sources.Returns.SaleReturns(ctx, customerID, scope, nil)
				if err != nil {
					return e.optional(ctx, SourceReturns, err)
				}
				snap.Returns = returns
				if e.sources.ReturnPayments == nil {
					e.missing(ctx, SourceReturnPayments)
					return nil
				}
				ids := make([]uuid.UUID, 0, len(returns))
				for _, r := range returns {
					ids = append(ids, r.ID)
				}
				if len(ids) == 0 {
					return nil
				}
				refunds, err := e.sources.ReturnPayments.ReturnPayments(ctx, ids, childRange)
				if err != nil {
					return e.optional(ctx, SourceReturnPayments, err)
				}
				snap.ReturnPayments = refunds
				return nil
			})
		} else {
			e.missing(ctx, SourceReturns)
		}

		if e.sources.StudioOrders != nil {
			g.Go(func() error {
				orders, err := e.sources.StudioOrders.StudioOrders(ctx, customerID, scope, nil)
				if err != nil {
					return e.optional(ctx, SourceStudioOrders, err)
				}
				snap.StudioOrders = orders
				return nil
			})
		} else {
			e.missing(ctx, SourceStudioOrders)
		}

		if e.sources.Rentals != nil {
			g.Go(func() error {
				rentals, err := e.sources.Rentals.Rentals(ctx, customerID, scope, nil)
				if err != nil {
					return e.optional(ctx, SourceRentals, err)
				}
				snap.Rentals = rentals
				if e.sources.RentalPayments == nil {
					e.missing(ctx, SourceRentalPayments)
					return nil
				}
				ids := make([]uuid.UUID, 0, len(rentals))
				for _, r := range rentals {
					ids = append(ids, r.ID)
				}
				if len(ids) == 0 {
					return nil
				}
				payments, err := e.sources.RentalPayments.RentalPayments(ctx, ids, childRange)
				if err != nil {
					return e.optional(ctx, SourceRentalPayments, err)
				}
				snap.RentalPayments = payments
				return nil
			})
		} else {
			e.missing(ctx, SourceRentals)
		}
	}

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func invoiceIDs(invoices []InvoiceRecord) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
	}
	return ids
}

// wrap converts an adapter failure into a DataAccessError. Context errors and
// errors that already carry a source pass through unchanged.
func (e *Engine) wrap(source string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var dae *DataAccessError
	if errors.As(err, &dae) {
		return err
	}
	return &DataAccessError{Source: source, Err: err}
}

// optional swallows ErrFeatureNotProvisioned from an optional source.
func (e *Engine) optional(ctx context.Context, source string, err error) error {
	if errors.Is(err, ErrFeatureNotProvisioned) {
		e.missing(ctx, source)
		return nil
	}
	return e.wrap(source, err)
}

func (e *Engine) missing(ctx context.Context, source string) {
	e.logger.DebugContext(ctx, "optional ledger source not provisioned", slog.String("source", source))
	e.metrics.RecordMissing(source)
}
