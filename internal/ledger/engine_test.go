package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScope = CompanyScope{CompanyID: uuid.MustParse("7b0c1e4a-8f6d-4c1b-9a55-3f2e8d1c0a01")}

func requireDec(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, got.Equal(dec(want)), "want %d got %s %v", want, got, msgAndArgs)
}

func newTestEngine(t *testing.T, src Sources, opts Options) *Engine {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return day(10).Add(15 * time.Hour) }
	}
	engine, err := NewEngine(src, opts)
	require.NoError(t, err)
	return engine
}

// basicHistory is one invoice of 5000 with 2000 already paid and a payment of
// 1000 recorded on day 3.
func basicHistory(customerID uuid.UUID) (*memorySources, InvoiceRecord) {
	mem := newMemorySources(customerID)
	inv := InvoiceRecord{
		ID:          uuid.New(),
		ReferenceNo: "INV-0001",
		Date:        day(1),
		Kind:        KindRetail,
		Total:       dec(5000),
		PaidAmount:  dec(2000),
		DueAmount:   dec(3000),
	}
	mem.invoices = []InvoiceRecord{inv}
	mem.payments = []PaymentRecord{{
		ID:          uuid.New(),
		ReferenceNo: "PAY-0001",
		Date:        day(3),
		Amount:      dec(1000),
		Method:      "bank_transfer",
		SaleID:      inv.ID,
	}}
	return mem, inv
}

func TestComputeLedgerSaleAndPayment(t *testing.T) {
	customerID := uuid.New()
	mem, _ := basicHistory(customerID)
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	result, err := engine.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(1), To: day(5)})
	require.NoError(t, err)

	requireDec(t, 0, result.OpeningBalance)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, DocSale, result.Transactions[0].DocumentType)
	requireDec(t, 5000, result.Transactions[0].RunningBalance)
	assert.Equal(t, DocPayment, result.Transactions[1].DocumentType)
	assert.Equal(t, []string{"INV-0001"}, result.Transactions[1].LinkedInvoices)
	assert.Equal(t, "Payment via Bank Transfer", result.Transactions[1].Description)
	requireDec(t, 4000, result.Transactions[1].RunningBalance)

	sum := result.Summary
	assert.Equal(t, 1, sum.TotalInvoices)
	requireDec(t, 5000, sum.TotalInvoiceAmount)
	requireDec(t, 1000, sum.TotalPaymentReceived)
	requireDec(t, 3000, sum.PendingAmount)
	requireDec(t, 4000, sum.ClosingBalance)
	assert.Equal(t, 1, sum.PartiallyPaid)

	require.Len(t, result.Invoices, 1)
	assert.Equal(t, StatusPartiallyPaid, result.Invoices[0].Status)
	requireDec(t, 3000, result.Invoices[0].PendingAmount)

	requireDec(t, 3000, result.Aging.Days1To30)
	requireDec(t, 3000, result.Aging.Total)
}

func TestComputeLedgerWithReturn(t *testing.T) {
	customerID := uuid.New()
	mem, _ := basicHistory(customerID)
	mem.returns = []ReturnRecord{{ID: uuid.New(), ReferenceNo: "RET-0001", Date: day(2), Total: dec(500)}}
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	result, err := engine.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(1), To: day(5)})
	require.NoError(t, err)

	require.Len(t, result.Transactions, 3)
	assert.Equal(t, DocSaleReturn, result.Transactions[1].DocumentType)
	requireDec(t, 500, result.Transactions[1].Credit)
	requireDec(t, 4500, result.Transactions[1].RunningBalance)
	requireDec(t, 3500, result.Transactions[2].RunningBalance)
	requireDec(t, 2500, result.Summary.PendingAmount)
	requireDec(t, 3500, result.Summary.ClosingBalance)
}

func TestComputeLedgerOpeningReplay(t *testing.T) {
	customerID := uuid.New()
	mem := newMemorySources(customerID)
	mem.customer.OpeningBalance = dec(999)
	old := InvoiceRecord{ID: uuid.New(), ReferenceNo: "INV-0100", Date: day(1), Total: dec(1000), DueAmount: dec(300)}
	fresh := InvoiceRecord{ID: uuid.New(), ReferenceNo: "INV-0101", Date: day(12), Total: dec(200), DueAmount: dec(200)}
	mem.invoices = []InvoiceRecord{fresh, old}
	mem.payments = []PaymentRecord{
		{ID: uuid.New(), ReferenceNo: "PAY-0100", Date: day(5), Amount: dec(400), SaleID: old.ID},
		{ID: uuid.New(), ReferenceNo: "PAY-0101", Date: day(12), Amount: dec(300), SaleID: old.ID},
		{ID: uuid.New(), ReferenceNo: "PAY-0102", Date: day(25), Amount: dec(50), SaleID: fresh.ID},
	}
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	result, err := engine.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(10), To: day(20)})
	require.NoError(t, err)

	requireDec(t, 600, result.OpeningBalance)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "INV-0101", result.Transactions[0].ReferenceNo)
	requireDec(t, 800, result.Transactions[0].RunningBalance)
	assert.Equal(t, "PAY-0101", result.Transactions[1].ReferenceNo)
	requireDec(t, 500, result.Transactions[1].RunningBalance)
	requireDec(t, 500, result.Summary.ClosingBalance)
	assert.Zero(t, mem.callCount(SourceCustomers))

	seeded := newTestEngine(t, mem.sources(), Options{Strict: true, SeedWindowedOpening: true})
	result, err = seeded.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(10), To: day(20)})
	require.NoError(t, err)
	requireDec(t, 1599, result.OpeningBalance)
}

func TestComputeLedgerWithoutStartUsesSeed(t *testing.T) {
	customerID := uuid.New()
	mem, _ := basicHistory(customerID)
	mem.customer.OpeningBalance = dec(750)
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	result, err := engine.ComputeLedger(context.Background(), customerID, testScope, DateRange{})
	require.NoError(t, err)
	requireDec(t, 750, result.OpeningBalance)
	requireDec(t, 4750, result.Summary.ClosingBalance)
	requireDec(t, 4750, result.Transactions[len(result.Transactions)-1].RunningBalance)
}

func TestComputeLedgerEmptyWindow(t *testing.T) {
	customerID := uuid.New()
	mem, _ := basicHistory(customerID)
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	result, err := engine.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(20), To: day(25)})
	require.NoError(t, err)
	require.NotNil(t, result.Transactions)
	assert.Empty(t, result.Transactions)
	requireDec(t, 4000, result.OpeningBalance)
	requireDec(t, 4000, result.Summary.ClosingBalance)
	assert.Zero(t, result.Summary.TotalInvoices)
}

func TestComputeLedgerStudioSale(t *testing.T) {
	customerID := uuid.New()
	mem := newMemorySources(customerID)
	studio := InvoiceRecord{ID: uuid.New(), ReferenceNo: "STD-0007", Date: day(2), Total: dec(1000), DueAmount: dec(1250)}
	flagged := InvoiceRecord{ID: uuid.New(), ReferenceNo: "STD-0008", Date: day(2), Kind: KindRetail, Total: dec(1000)}
	mem.invoices = []InvoiceRecord{studio, flagged}
	mem.stageCosts[studio.ID] = dec(250)
	mem.stageCosts[flagged.ID] = dec(90)
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	txs, err := engine.ComputeTransactions(context.Background(), customerID, testScope, DateRange{From: day(1), To: day(5)})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, DocStudioSale, txs[0].DocumentType)
	requireDec(t, 1250, txs[0].Debit)
	assert.Equal(t, DocSale, txs[1].DocumentType)
	requireDec(t, 1000, txs[1].Debit)

	invoices, err := engine.ComputeInvoices(context.Background(), customerID, testScope, DateRange{})
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, KindStudio, invoices[0].Kind)
	requireDec(t, 1250, invoices[0].InvoiceTotal)
	assert.Equal(t, StatusUnpaid, invoices[0].Status)
}

func TestComputeLedgerStudioOrdersAndRentals(t *testing.T) {
	customerID := uuid.New()
	mem := newMemorySources(customerID)
	rental := RentalRecord{ID: uuid.New(), ReferenceNo: "RNT-0001", BookingDate: day(3), CreatedAt: day(1), TotalAmount: dec(800)}
	mem.rentals = []RentalRecord{rental}
	mem.rentalPayments = []RentalPaymentRecord{{ID: uuid.New(), ReferenceNo: "RP-0001", Date: day(4), Amount: dec(300), Method: "cash", RentalID: rental.ID}}
	mem.studioOrders = []StudioOrderRecord{{ID: uuid.New(), ReferenceNo: "SO-0001", Date: day(2), TotalCost: dec(2000), AdvancePaid: dec(500)}}
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	result, err := engine.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(1), To: day(5)})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 3)

	order := result.Transactions[0]
	assert.Equal(t, DocStudioOrder, order.DocumentType)
	requireDec(t, 2000, order.Debit)
	requireDec(t, 500, order.Credit)
	requireDec(t, 1500, order.RunningBalance)

	booking := result.Transactions[1]
	assert.Equal(t, DocRental, booking.DocumentType)
	assert.Equal(t, day(3), booking.Date)

	payment := result.Transactions[2]
	assert.Equal(t, DocRentalPayment, payment.DocumentType)
	assert.Equal(t, []string{"RNT-0001"}, payment.LinkedInvoices)
	requireDec(t, 2000, payment.RunningBalance)
	assert.Zero(t, result.Summary.TotalInvoices)
}

func TestComputeLedgerOptionalSourceNotProvisioned(t *testing.T) {
	customerID := uuid.New()
	mem, _ := basicHistory(customerID)
	mem.studioOrders = []StudioOrderRecord{{ID: uuid.New(), ReferenceNo: "SO-1", Date: day(2), TotalCost: dec(10)}}
	mem.errs[SourceStudioOrders] = ErrFeatureNotProvisioned
	mem.errs[SourceRentals] = ErrFeatureNotProvisioned
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	engine := newTestEngine(t, mem.sources(), Options{Strict: true, Metrics: metrics})

	result, err := engine.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(1), To: day(5)})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	requireDec(t, 4000, result.Summary.ClosingBalance)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.missing.WithLabelValues(SourceStudioOrders)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.missing.WithLabelValues(SourceRentals)))
}

func TestComputeLedgerNilOptionalSources(t *testing.T) {
	customerID := uuid.New()
	mem, _ := basicHistory(customerID)
	engine := newTestEngine(t, Sources{Invoices: mem, Payments: mem, Customers: mem}, Options{Strict: true})

	result, err := engine.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(1), To: day(5)})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	assert.Empty(t, result.Invoices[0].Items)
}

func TestComputeLedgerSourceFailures(t *testing.T) {
	cases := []struct {
		name   string
		source string
	}{
		{name: "required payments", source: SourcePayments},
		{name: "required invoices", source: SourceInvoices},
		{name: "optional rentals", source: SourceRentals},
		{name: "optional stage costs", source: SourceStageCosts},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			customerID := uuid.New()
			mem, _ := basicHistory(customerID)
			mem.rentals = []RentalRecord{{ID: uuid.New(), ReferenceNo: "RNT-1", CreatedAt: day(1), TotalAmount: dec(1)}}
			mem.errs[tc.source] = errors.New("connection reset")
			engine := newTestEngine(t, mem.sources(), Options{Strict: true})

			result, err := engine.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(1), To: day(5)})
			require.Error(t, err)
			require.ErrorIs(t, err, ErrDataAccess)
			var dae *DataAccessError
			require.ErrorAs(t, err, &dae)
			assert.Equal(t, tc.source, dae.Source)
			assert.Empty(t, result.Transactions)
		})
	}
}

func TestComputeLedgerCancelled(t *testing.T) {
	customerID := uuid.New()
	mem, _ := basicHistory(customerID)
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.ComputeLedger(ctx, customerID, testScope, DateRange{From: day(1), To: day(5)})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrDataAccess)

	mem.block = true
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result, err := engine.ComputeLedger(ctx, customerID, testScope, DateRange{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, result.Transactions)
}

func TestComputeLedgerInvalidInput(t *testing.T) {
	customerID := uuid.New()
	mem, _ := basicHistory(customerID)
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	_, err := engine.ComputeLedger(context.Background(), uuid.Nil, testScope, DateRange{})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = engine.ComputeLedger(context.Background(), customerID, CompanyScope{}, DateRange{})
	require.ErrorIs(t, err, ErrInvalidInput)
	result, err := engine.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(9), To: day(2)})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, LedgerResult{}, result)
	assert.Zero(t, mem.callCount(SourceInvoices))
}

func TestComputeLedgerIsDeterministic(t *testing.T) {
	customerID := uuid.New()
	mem, inv := basicHistory(customerID)
	second := InvoiceRecord{ID: uuid.New(), ReferenceNo: "INV-0002", Date: day(3), Total: dec(700), DueAmount: dec(700)}
	mem.invoices = append(mem.invoices, second)
	mem.payments = append(mem.payments, PaymentRecord{ID: uuid.New(), ReferenceNo: "PAY-0000", Date: day(3), Amount: dec(100), SaleID: inv.ID})
	mem.returns = []ReturnRecord{{ID: uuid.New(), ReferenceNo: "RET-1", Date: day(3), Total: dec(50)}}
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})
	window := DateRange{From: day(1), To: day(5)}

	first, err := engine.ComputeLedger(context.Background(), customerID, testScope, window)
	require.NoError(t, err)
	want, err := json.Marshal(first)
	require.NoError(t, err)

	mem.invoices[0], mem.invoices[1] = mem.invoices[1], mem.invoices[0]
	mem.payments[0], mem.payments[1] = mem.payments[1], mem.payments[0]
	again, err := engine.ComputeLedger(context.Background(), customerID, testScope, window)
	require.NoError(t, err)
	got, err := json.Marshal(again)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
	assert.Equal(t, string(want), string(got))

	refs := make([]string, 0, len(again.Transactions))
	for _, tx := range again.Transactions {
		refs = append(refs, tx.ReferenceNo)
	}
	assert.Equal(t, []string{"INV-0001", "INV-0002", "PAY-0000", "PAY-0001", "RET-1"}, refs)
}

func TestComputeLedgerInvariantModes(t *testing.T) {
	customerID := uuid.New()
	mem, inv := basicHistory(customerID)
	mem.payments = append(mem.payments, PaymentRecord{ID: uuid.New(), ReferenceNo: "PAY-BAD", Date: day(2), Amount: dec(-5), SaleID: inv.ID})

	strict := newTestEngine(t, mem.sources(), Options{Strict: true})
	_, err := strict.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(1), To: day(5)})
	require.ErrorIs(t, err, ErrInvariantViolation)
	var violation *InvariantViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, CheckNonNegative, violation.Check)

	metrics := NewMetrics(prometheus.NewRegistry())
	lenient := newTestEngine(t, mem.sources(), Options{Metrics: metrics})
	result, err := lenient.ComputeLedger(context.Background(), customerID, testScope, DateRange{From: day(1), To: day(5)})
	require.NoError(t, err)
	assert.Len(t, result.Transactions, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.violations.WithLabelValues(CheckNonNegative)))
}

func TestComputePayments(t *testing.T) {
	customerID := uuid.New()
	mem, _ := basicHistory(customerID)
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	payments, err := engine.ComputePayments(context.Background(), customerID, testScope, DateRange{To: day(5)})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, []string{"INV-0001"}, payments[0].AppliedInvoices)
	assert.Equal(t, PaymentStatusCompleted, payments[0].Status)
	assert.Equal(t, "Bank Transfer", payments[0].Method)
	assert.Zero(t, mem.callCount(SourceReturns))
}

func TestComputeAgingReport(t *testing.T) {
	customerID := uuid.New()
	mem, _ := basicHistory(customerID)
	mem.invoices = append(mem.invoices,
		InvoiceRecord{ID: uuid.New(), ReferenceNo: "INV-OLD", Date: day(10).AddDate(0, 0, -95), Total: dec(900), DueAmount: dec(900)},
		InvoiceRecord{ID: uuid.New(), ReferenceNo: "INV-PAID", Date: day(2), Total: dec(100), DueAmount: decimal.Zero},
	)
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	report, err := engine.ComputeAgingReport(context.Background(), customerID, testScope)
	require.NoError(t, err)
	assert.Equal(t, day(10), report.AsOf)
	requireDec(t, 3000, report.Days1To30)
	requireDec(t, 900, report.Days90Plus)
	requireDec(t, 3900, report.Total)
	assert.Zero(t, mem.callCount(SourcePayments))
}

func TestCustomerProfile(t *testing.T) {
	customerID := uuid.MustParse("3fa85f64-5717-4562-b3fc-2c963f66afa6")
	mem, _ := basicHistory(customerID)
	mem.customer.OpeningBalance = dec(120)
	engine := newTestEngine(t, mem.sources(), Options{Strict: true})

	profile, err := engine.CustomerProfile(context.Background(), customerID, testScope)
	require.NoError(t, err)
	assert.Equal(t, "CUS-3FA85F64", profile.Code)
	requireDec(t, 3000, profile.OutstandingBalance)

	mem.invoices = nil
	profile, err = engine.CustomerProfile(context.Background(), customerID, testScope)
	require.NoError(t, err)
	requireDec(t, 120, profile.OutstandingBalance)

	mem.customerErr = ErrCustomerNotFound
	_, err = engine.CustomerProfile(context.Background(), customerID, testScope)
	require.ErrorIs(t, err, ErrCustomerNotFound)
	assert.NotErrorIs(t, err, ErrDataAccess)
}

func TestNewEngineRequiresSources(t *testing.T) {
	mem := newMemorySources(uuid.New())
	_, err := NewEngine(Sources{Invoices: mem, Customers: mem}, Options{})
	require.Error(t, err)
	_, err = NewEngine(Sources{Invoices: mem, Payments: mem}, Options{})
	require.Error(t, err)
}
