package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceRecord is a sale invoice row as returned by an InvoiceSource.
type InvoiceRecord struct {
	ID          uuid.UUID
	ReferenceNo string
	Date        time.Time
	Kind        InvoiceKind
	Total       decimal.Decimal
	PaidAmount  decimal.Decimal
	DueAmount   decimal.Decimal
}

// PaymentRecord is a payment received against a sale.
type PaymentRecord struct {
	ID          uuid.UUID
	ReferenceNo string
	Date        time.Time
	Amount      decimal.Decimal
	Method      string
	Notes       string
	SaleID      uuid.UUID
}

// ReturnRecord is a finalized sale return.
type ReturnRecord struct {
	ID          uuid.UUID
	ReferenceNo string
	Date        time.Time
	Total       decimal.Decimal
}

// ReturnPaymentRecord is a refund paid against a sale return.
type ReturnPaymentRecord struct {
	ID          uuid.UUID
	ReferenceNo string
	Date        time.Time
	Amount      decimal.Decimal
	Method      string
	ReturnID    uuid.UUID
}

// StudioOrderRecord is a production order billed with an optional advance.
type StudioOrderRecord struct {
	ID          uuid.UUID
	ReferenceNo string
	Date        time.Time
	TotalCost   decimal.Decimal
	AdvancePaid decimal.Decimal
}

// RentalRecord is a rental booking.
type RentalRecord struct {
	ID          uuid.UUID
	ReferenceNo string
	PickupDate  time.Time
	BookingDate time.Time
	CreatedAt   time.Time
	TotalAmount decimal.Decimal
}

// EffectiveDate is the pickup date, else the booking date, else the creation date.
func (r RentalRecord) EffectiveDate() time.Time {
	switch {
	case !r.PickupDate.IsZero():
		return Day(r.PickupDate)
	case !r.BookingDate.IsZero():
		return Day(r.BookingDate)
	default:
		return Day(r.CreatedAt)
	}
}

// RentalPaymentRecord is a payment received against a rental.
type RentalPaymentRecord struct {
	ID          uuid.UUID
	ReferenceNo string
	Date        time.Time
	Amount      decimal.Decimal
	Method      string
	RentalID    uuid.UUID
}

// InvoiceItem is a sale line item.
type InvoiceItem struct {
	ItemName  string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// CustomerRecord is the contact registry entry for a customer.
type CustomerRecord struct {
	ID             uuid.UUID
	Name           string
	Phone          string
	Email          string
	City           string
	Address        string
	CreditLimit    decimal.Decimal
	OpeningBalance decimal.Decimal
}

// InvoiceSource lists sale invoices of a customer.
type InvoiceSource interface {
	Invoices(ctx context.Context, customerID uuid.UUID, scope CompanyScope, r *DateRange) ([]InvoiceRecord, error)
}

// PaymentSource lists payments made against the given sales.
type PaymentSource interface {
	Payments(ctx context.Context, saleIDs []uuid.UUID, r *DateRange) ([]PaymentRecord, error)
}

// ReturnSource lists finalized sale returns of a customer.
type ReturnSource interface {
	SaleReturns(ctx context.Context, customerID uuid.UUID, scope CompanyScope, r *DateRange) ([]ReturnRecord, error)
}

// ReturnPaymentSource lists refunds paid against the given returns.
type ReturnPaymentSource interface {
	ReturnPayments(ctx context.Context, returnIDs []uuid.UUID, r *DateRange) ([]ReturnPaymentRecord, error)
}

// StudioOrderSource lists production orders of a customer.
type StudioOrderSource interface {
	StudioOrders(ctx context.Context, customerID uuid.UUID, scope CompanyScope, r *DateRange) ([]StudioOrderRecord, error)
}

// StageCostSource sums production-stage costs per sale.
type StageCostSource interface {
	ProductionStageCosts(ctx context.Context, saleIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

// RentalSource lists rental bookings of a customer.
type RentalSource interface {
	Rentals(ctx context.Context, customerID uuid.UUID, scope CompanyScope, r *DateRange) ([]RentalRecord, error)
}

// RentalPaymentSource lists payments made against the given rentals.
type RentalPaymentSource interface {
	RentalPayments(ctx context.Context, rentalIDs []uuid.UUID, r *DateRange) ([]RentalPaymentRecord, error)
}

// InvoiceItemSource lists line items per sale.
type InvoiceItemSource interface {
	InvoiceItems(ctx context.Context, saleIDs []uuid.UUID) (map[uuid.UUID][]InvoiceItem, error)
}

// CustomerSource reads the contact registry.
type CustomerSource interface {
	Customer(ctx context.Context, customerID uuid.UUID, scope CompanyScope) (CustomerRecord, error)
}

// Sources groups the adapters the engine reads from. Invoices, Payments and
// Customers are required; a nil optional source is treated as not provisioned.
type Sources struct {
	Invoices       InvoiceSource
	Payments       PaymentSource
	Returns        ReturnSource
	ReturnPayments ReturnPaymentSource
	StudioOrders   StudioOrderSource
	StageCosts     StageCostSource
	Rentals        RentalSource
	RentalPayments RentalPaymentSource
	InvoiceItems   InvoiceItemSource
	Customers      CustomerSource
}

// Source names used in errors, logs and metrics.
const (
	SourceInvoices       = "invoices"
	SourcePayments       = "payments"
	SourceReturns        = "sale_returns"
	SourceReturnPayments = "return_payments"
	SourceStudioOrders   = "studio_orders"
	SourceStageCosts     = "production_stage_costs"
	SourceRentals        = "rentals"
	SourceRentalPayments = "rental_payments"
	SourceInvoiceItems   = "invoice_items"
	SourceCustomers      = "customers"
)
