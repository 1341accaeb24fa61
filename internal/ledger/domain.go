package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentType classifies a ledger transaction.
type DocumentType string

const (
	DocSale           DocumentType = "Sale"
	DocStudioSale     DocumentType = "Studio Sale"
	DocStudioOrder    DocumentType = "Studio Order"
	DocSaleReturn     DocumentType = "Sale Return"
	DocPayment        DocumentType = "Payment"
	DocReturnPayment  DocumentType = "Return Payment"
	DocRental         DocumentType = "Rental"
	DocRentalPayment  DocumentType = "Rental Payment"
	DocOpeningBalance DocumentType = "Opening Balance"
)

// IsInvoice reports whether the document type carries an invoice.
func (d DocumentType) IsInvoice() bool {
	return d == DocSale || d == DocStudioSale
}

// InvoiceKind records how a sale invoice is fulfilled.
type InvoiceKind string

const (
	// KindUnspecified marks rows from sources that do not expose the flag.
	KindUnspecified InvoiceKind = ""
	KindRetail      InvoiceKind = "retail"
	KindStudio      InvoiceKind = "studio"
)

// InvoiceStatus is the payment state of a derived invoice.
type InvoiceStatus string

const (
	StatusFullyPaid     InvoiceStatus = "Fully Paid"
	StatusPartiallyPaid InvoiceStatus = "Partially Paid"
	StatusUnpaid        InvoiceStatus = "Unpaid"
)

// CompanyScope identifies the tenant and optional branch a request runs under.
type CompanyScope struct {
	CompanyID uuid.UUID
	BranchID  *uuid.UUID
}

// BranchToken renders the branch for cache keys and logs.
func (s CompanyScope) BranchToken() string {
	if s.BranchID == nil {
		return "-"
	}
	return s.BranchID.String()
}

// DateRange bounds a query by calendar day. Zero ends are open; both ends are inclusive.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IsZero reports whether neither end is bounded.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether day falls inside the range.
func (r DateRange) Contains(day time.Time) bool {
	day = Day(day)
	if !r.From.IsZero() && day.Before(Day(r.From)) {
		return false
	}
	if !r.To.IsZero() && day.After(Day(r.To)) {
		return false
	}
	return true
}

// Normalized truncates both ends to calendar days.
func (r DateRange) Normalized() DateRange {
	out := DateRange{}
	if !r.From.IsZero() {
		out.From = Day(r.From)
	}
	if !r.To.IsZero() {
		out.To = Day(r.To)
	}
	return out
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Transaction is one row of the customer ledger.
type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	Date           time.Time       `json:"date"`
	ReferenceNo    string          `json:"referenceNo"`
	DocumentType   DocumentType    `json:"documentType"`
	Description    string          `json:"description"`
	PaymentAccount string          `json:"paymentAccount,omitempty"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
	LinkedInvoices []string        `json:"linkedInvoices,omitempty"`
	LinkedPayments []string        `json:"linkedPayments,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

// Net returns debit minus credit.
func (t Transaction) Net() decimal.Decimal {
	return t.Debit.Sub(t.Credit)
}

// InvoiceLine is a line item on a derived invoice.
type InvoiceLine struct {
	ItemName  string          `json:"itemName"`
	Qty       decimal.Decimal `json:"qty"`
	Rate      decimal.Decimal `json:"rate"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Invoice is the derived invoice view.
type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNo     string          `json:"invoiceNo"`
	Date          time.Time       `json:"date"`
	Kind          InvoiceKind     `json:"kind"`
	InvoiceTotal  decimal.Decimal `json:"invoiceTotal"`
	Items         []InvoiceLine   `json:"items"`
	Status        InvoiceStatus   `json:"status"`
	PaidAmount    decimal.Decimal `json:"paidAmount"`
	PendingAmount decimal.Decimal `json:"pendingAmount"`
}

// Payment is the derived view of a sale payment.
type Payment struct {
	ID              uuid.UUID       `json:"id"`
	PaymentNo       string          `json:"paymentNo"`
	Date            time.Time       `json:"date"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"`
	ReferenceNo     string          `json:"referenceNo"`
	AppliedInvoices []string        `json:"appliedInvoices"`
	Status          string          `json:"status"`
}

// PaymentStatusCompleted is the only status a recorded payment can have.
const PaymentStatusCompleted = "Completed"

// LedgerSummary aggregates a window of the ledger.
type LedgerSummary struct {
	OpeningBalance       decimal.Decimal `json:"openingBalance"`
	TotalDebit           decimal.Decimal `json:"totalDebit"`
	TotalCredit          decimal.Decimal `json:"totalCredit"`
	ClosingBalance       decimal.Decimal `json:"closingBalance"`
	TotalInvoices        int             `json:"totalInvoices"`
	TotalInvoiceAmount   decimal.Decimal `json:"totalInvoiceAmount"`
	TotalPaymentReceived decimal.Decimal `json:"totalPaymentReceived"`
	PendingAmount        decimal.Decimal `json:"pendingAmount"`
	FullyPaid            int             `json:"fullyPaid"`
	PartiallyPaid        int             `json:"partiallyPaid"`
	Unpaid               int             `json:"unpaid"`
}

// AgingReport buckets outstanding invoice balances by age.
type AgingReport struct {
	AsOf       time.Time       `json:"asOf"`
	Current    decimal.Decimal `json:"current"`
	Days1To30  decimal.Decimal `json:"days1to30"`
	Days31To60 decimal.Decimal `json:"days31to60"`
	Days61To90 decimal.Decimal `json:"days61to90"`
	Days90Plus decimal.Decimal `json:"days90plus"`
	Total      decimal.Decimal `json:"total"`
}

// BucketSum adds the five buckets.
func (r AgingReport) BucketSum() decimal.Decimal {
	return r.Current.Add(r.Days1To30).Add(r.Days31To60).Add(r.Days61To90).Add(r.Days90Plus)
}

// CustomerProfile is the registry record enriched with ledger figures.
type CustomerProfile struct {
	ID                 uuid.UUID       `json:"id"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	Phone              string          `json:"phone"`
	Email              string          `json:"email"`
	City               string          `json:"city"`
	Address            string          `json:"address"`
	CreditLimit        decimal.Decimal `json:"creditLimit"`
	OpeningBalance     decimal.Decimal `json:"openingBalance"`
	OutstandingBalance decimal.Decimal `json:"outstandingBalance"`
}

// LedgerResult bundles every report computed for one customer and window.
type LedgerResult struct {
	CustomerID     uuid.UUID       `json:"customerId"`
	Window         DateRange       `json:"window"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Transactions   []Transaction   `json:"transactions"`
	Summary        LedgerSummary   `json:"summary"`
	Invoices       []Invoice       `json:"invoices"`
	Aging          AgingReport     `json:"aging"`
}
