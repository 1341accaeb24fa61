package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memorySources struct {
	mu             sync.Mutex
	customer       CustomerRecord
	customerErr    error
	invoices       []InvoiceRecord
	payments       []PaymentRecord
	returns        []ReturnRecord
	returnPayments []ReturnPaymentRecord
	studioOrders   []StudioOrderRecord
	stageCosts     map[uuid.UUID]decimal.Decimal
	rentals        []RentalRecord
	rentalPayments []RentalPaymentRecord
	items          map[uuid.UUID][]InvoiceItem
	errs           map[string]error
	calls          map[string]int
	block          bool
}

func newMemorySources(customerID uuid.UUID) *memorySources {
	return &memorySources{
		customer:   CustomerRecord{ID: customerID, Name: "Ayesha Khan", OpeningBalance: decimal.Zero},
		stageCosts: make(map[uuid.UUID]decimal.Decimal),
		items:      make(map[uuid.UUID][]InvoiceItem),
		errs:       make(map[string]error),
		calls:      make(map[string]int),
	}
}

func (m *memorySources) sources() Sources {
	return Sources{
		Invoices:       m,
		Payments:       m,
		Returns:        m,
		ReturnPayments: m,
		StudioOrders:   m,
		StageCosts:     m,
		Rentals:        m,
		RentalPayments: m,
		InvoiceItems:   m,
		Customers:      m,
	}
}

func (m *memorySources) enter(ctx context.Context, source string) error {
	m.mu.Lock()
	m.calls[source]++
	err := m.errs[source]
	block := m.block
	m.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return err
}

func (m *memorySources) callCount(source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[source]
}

func inRange(r *DateRange, t time.Time) bool {
	return r == nil || r.Contains(t)
}

func (m *memorySources) Customer(ctx context.Context, customerID uuid.UUID, scope CompanyScope) (CustomerRecord, error) {
	if err := m.enter(ctx, SourceCustomers); err != nil {
		return CustomerRecord{}, err
	}
	if m.customerErr != nil {
		return CustomerRecord{}, m.customerErr
	}
	return m.customer, nil
}

func (m *memorySources) Invoices(ctx context.Context, customerID uuid.UUID, scope CompanyScope, r *DateRange) ([]InvoiceRecord, error) {
	if err := m.enter(ctx, SourceInvoices); err != nil {
		return nil, err
	}
	var out []InvoiceRecord
	for _, inv := range m.invoices {
		if inRange(r, inv.Date) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memorySources) Payments(ctx context.Context, saleIDs []uuid.UUID, r *DateRange) ([]PaymentRecord, error) {
	if err := m.enter(ctx, SourcePayments); err != nil {
		return nil, err
	}
	wanted := idSet(saleIDs)
	var out []PaymentRecord
	for _, p := range m.payments {
		if wanted[p.SaleID] && inRange(r, p.Date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memorySources) SaleReturns(ctx context.Context, customerID uuid.UUID, scope CompanyScope, r *DateRange) ([]ReturnRecord, error) {
	if err := m.enter(ctx, SourceReturns); err != nil {
		return nil, err
	}
	var out []ReturnRecord
	for _, ret := range m.returns {
		if inRange(r, ret.Date) {
			out = append(out, ret)
		}
	}
	return out, nil
}

func (m *memorySources) ReturnPayments(ctx context.Context, returnIDs []uuid.UUID, r *DateRange) ([]ReturnPaymentRecord, error) {
	if err := m.enter(ctx, SourceReturnPayments); err != nil {
		return nil, err
	}
	wanted := idSet(returnIDs)
	var out []ReturnPaymentRecord
	for _, p := range m.returnPayments {
		if wanted[p.ReturnID] && inRange(r, p.Date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memorySources) StudioOrders(ctx context.Context, customerID uuid.UUID, scope CompanyScope, r *DateRange) ([]StudioOrderRecord, error) {
	if err := m.enter(ctx, SourceStudioOrders); err != nil {
		return nil, err
	}
	var out []StudioOrderRecord
	for _, o := range m.studioOrders {
		if inRange(r, o.Date) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memorySources) ProductionStageCosts(ctx context.Context, saleIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	if err := m.enter(ctx, SourceStageCosts); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]decimal.Decimal)
	for _, id := range saleIDs {
		if cost, ok := m.stageCosts[id]; ok {
			out[id] = cost
		}
	}
	return out, nil
}

func (m *memorySources) Rentals(ctx context.Context, customerID uuid.UUID, scope CompanyScope, r *DateRange) ([]RentalRecord, error) {
	if err := m.enter(ctx, SourceRentals); err != nil {
		return nil, err
	}
	var out []RentalRecord
	for _, rental := range m.rentals {
		if inRange(r, rental.EffectiveDate()) {
			out = append(out, rental)
		}
	}
	return out, nil
}

func (m *memorySources) RentalPayments(ctx context.Context, rentalIDs []uuid.UUID, r *DateRange) ([]RentalPaymentRecord, error) {
	if err := m.enter(ctx, SourceRentalPayments); err != nil {
		return nil, err
	}
	wanted := idSet(rentalIDs)
	var out []RentalPaymentRecord
	for _, p := range m.rentalPayments {
		if wanted[p.RentalID] && inRange(r, p.Date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memorySources) InvoiceItems(ctx context.Context, saleIDs []uuid.UUID) (map[uuid.UUID][]InvoiceItem, error) {
	if err := m.enter(ctx, SourceInvoiceItems); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID][]InvoiceItem)
	for _, id := range saleIDs {
		if items, ok := m.items[id]; ok {
			out[id] = items
		}
	}
	return out, nil
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func day(n int) time.Time {
	return time.Date(2025, time.March, n, 0, 0, 0, 0, time.UTC)
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
