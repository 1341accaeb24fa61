package pgstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

const (
	privilegedSalesSQL = `SELECT id, invoice_no, invoice_date, is_studio, total, paid_amount, due_amount
FROM ledger_customer_sales($1, $2, $3, $4)`

	scopedSalesSQL = `SELECT id, invoice_no, invoice_date, is_studio, COALESCE(total, 0), COALESCE(paid_amount, 0), COALESCE(due_amount, 0)
FROM sales
WHERE company_id = $1
  AND customer_id = $2
  AND status <> 'cancelled'
  AND ($3::date IS NULL OR invoice_date >= $3)
  AND ($4::date IS NULL OR invoice_date <= $4)
  AND ($5::uuid IS NULL OR branch_id = $5)`

	privilegedPaymentsSQL = `SELECT id, reference_number, payment_date, amount, payment_method, notes, sale_id
FROM ledger_sale_payments($1::uuid[], $2, $3)`

	scopedPaymentsSQL = `SELECT id, COALESCE(reference_number, ''), payment_date, COALESCE(amount, 0), COALESCE(payment_method, ''), COALESCE(notes, ''), reference_id
FROM payments
WHERE reference_type = 'sale'
  AND reference_id = ANY($1::uuid[])
  AND ($2::date IS NULL OR payment_date >= $2)
  AND ($3::date IS NULL OR payment_date <= $3)`

	privilegedReturnsSQL = `SELECT id, return_no, return_date, total
FROM ledger_customer_returns($1, $2, $3, $4)`

	scopedReturnsSQL = `SELECT id, return_no, return_date, COALESCE(total, 0)
FROM sale_returns
WHERE company_id = $1
  AND customer_id = $2
  AND status = 'final'
  AND ($3::date IS NULL OR return_date >= $3)
  AND ($4::date IS NULL OR return_date <= $4)
  AND ($5::uuid IS NULL OR branch_id = $5)`

	privilegedReturnPaymentsSQL = `SELECT id, reference_number, payment_date, amount, payment_method, return_id
FROM ledger_return_payments($1::uuid[], $2, $3)`

	scopedReturnPaymentsSQL = `SELECT id, COALESCE(reference_number, ''), payment_date, COALESCE(amount, 0), COALESCE(payment_method, ''), reference_id
FROM payments
WHERE reference_type = 'sale_return'
  AND reference_id = ANY($1::uuid[])
  AND ($2::date IS NULL OR payment_date >= $2)
  AND ($3::date IS NULL OR payment_date <= $3)`

	privilegedStudioOrdersSQL = `SELECT id, order_no, order_date, total_cost, advance_paid
FROM ledger_customer_studio_orders($1, $2, $3, $4)`

	scopedStudioOrdersSQL = `SELECT id, order_no, order_date, COALESCE(total_cost, 0), COALESCE(advance_paid, 0)
FROM studio_orders
WHERE company_id = $1
  AND customer_id = $2
  AND ($3::date IS NULL OR order_date >= $3)
  AND ($4::date IS NULL OR order_date <= $4)
  AND ($5::uuid IS NULL OR branch_id = $5)`

	stageCostsSQL = `SELECT p.sale_id, COALESCE(SUM(st.cost), 0)
FROM studio_productions p
JOIN studio_production_stages st ON st.production_id = p.id
WHERE p.sale_id = ANY($1::uuid[])
GROUP BY p.sale_id`

	privilegedRentalsSQL = `SELECT id, booking_no, pickup_date, booking_date, created_at, total_amount
FROM ledger_customer_rentals($1, $2, $3, $4)`

	scopedRentalsSQL = `SELECT id, booking_no, pickup_date, booking_date, created_at, COALESCE(total_amount, 0)
FROM rentals
WHERE company_id = $1
  AND customer_id = $2
  AND status <> 'cancelled'
  AND ($3::date IS NULL OR COALESCE(pickup_date, booking_date, created_at::date) >= $3)
  AND ($4::date IS NULL OR COALESCE(pickup_date, booking_date, created_at::date) <= $4)
  AND ($5::uuid IS NULL OR branch_id = $5)`

	privilegedRentalPaymentsSQL = `SELECT id, reference_number, payment_date, amount, method, rental_id
FROM ledger_rental_payments($1::uuid[], $2, $3)`

	scopedRentalPaymentsSQL = `SELECT id, COALESCE(reference_number, ''), payment_date, COALESCE(amount, 0), COALESCE(method, ''), rental_id
FROM rental_payments
WHERE rental_id = ANY($1::uuid[])
  AND ($2::date IS NULL OR payment_date >= $2)
  AND ($3::date IS NULL OR payment_date <= $3)`

	invoiceItemsSQL = `SELECT sale_id, COALESCE(product_name, ''), COALESCE(quantity, 0), COALESCE(unit_price, 0), COALESCE(total, 0)
FROM sales_items
WHERE sale_id = ANY($1::uuid[])
ORDER BY sale_id, id`

	customerSQL = `SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(city, ''), COALESCE(address, ''),
       COALESCE(credit_limit, 0), COALESCE(opening_balance, 0)
FROM contacts
WHERE id = $1
  AND company_id = $2
  AND type IN ('customer', 'both')`
)

// Invoices implements ledger.InvoiceSource.
func (s *Store) Invoices(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, r *ledger.DateRange) ([]ledger.InvoiceRecord, error) {
	from, to := rangeArgs(r)
	return fetch(ctx, s, ledger.SourceInvoices,
		func(ctx context.Context) ([]ledger.InvoiceRecord, error) {
			return collect(ctx, s.db, true, scanInvoice, privilegedSalesSQL, scope.CompanyID, customerID, from, to)
		},
		func(ctx context.Context) ([]ledger.InvoiceRecord, error) {
			return collect(ctx, s.db, false, scanInvoice, scopedSalesSQL, scope.CompanyID, customerID, from, to, branchArg(scope))
		},
		customerAttrs(customerID, scope)...,
	)
}

func scanInvoice(row pgx.Row) (ledger.InvoiceRecord, error) {
	var (
		id               pgtype.UUID
		ref              pgtype.Text
		date             pgtype.Date
		studio           pgtype.Bool
		total, paid, due pgtype.Numeric
	)
	if err := row.Scan(&id, &ref, &date, &studio, &total, &paid, &due); err != nil {
		return ledger.InvoiceRecord{}, err
	}
	kind := ledger.KindUnspecified
	if studio.Valid {
		kind = ledger.KindRetail
		if studio.Bool {
			kind = ledger.KindStudio
		}
	}
	return ledger.InvoiceRecord{
		ID:          toUUID(id),
		ReferenceNo: ref.String,
		Date:        toTime(date),
		Kind:        kind,
		Total:       toDecimal(total),
		PaidAmount:  toDecimal(paid),
		DueAmount:   toDecimal(due),
	}, nil
}

// Payments implements ledger.PaymentSource.
func (s *Store) Payments(ctx context.Context, saleIDs []uuid.UUID, r *ledger.DateRange) ([]ledger.PaymentRecord, error) {
	if len(saleIDs) == 0 {
		return nil, nil
	}
	ids := idArgs(saleIDs)
	from, to := rangeArgs(r)
	return fetch(ctx, s, ledger.SourcePayments,
		func(ctx context.Context) ([]ledger.PaymentRecord, error) {
			return collect(ctx, s.db, true, scanPayment, privilegedPaymentsSQL, ids, from, to)
		},
		func(ctx context.Context) ([]ledger.PaymentRecord, error) {
			return collect(ctx, s.db, false, scanPayment, scopedPaymentsSQL, ids, from, to)
		},
		slog.Int("sales", len(saleIDs)),
	)
}

func scanPayment(row pgx.Row) (ledger.PaymentRecord, error) {
	var (
		id, saleID         pgtype.UUID
		ref, method, notes pgtype.Text
		date               pgtype.Date
		amount             pgtype.Numeric
	)
	if err := row.Scan(&id, &ref, &date, &amount, &method, &notes, &saleID); err != nil {
		return ledger.PaymentRecord{}, err
	}
	return ledger.PaymentRecord{
		ID:          toUUID(id),
		ReferenceNo: ref.String,
		Date:        toTime(date),
		Amount:      toDecimal(amount),
		Method:      method.String,
		Notes:       notes.String,
		SaleID:      toUUID(saleID),
	}, nil
}

// SaleReturns implements ledger.ReturnSource.
func (s *Store) SaleReturns(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, r *ledger.DateRange) ([]ledger.ReturnRecord, error) {
	from, to := rangeArgs(r)
	return fetch(ctx, s, ledger.SourceReturns,
		func(ctx context.Context) ([]ledger.ReturnRecord, error) {
			return collect(ctx, s.db, true, scanReturn, privilegedReturnsSQL, scope.CompanyID, customerID, from, to)
		},
		func(ctx context.Context) ([]ledger.ReturnRecord, error) {
			return collect(ctx, s.db, false, scanReturn, scopedReturnsSQL, scope.CompanyID, customerID, from, to, branchArg(scope))
		},
		customerAttrs(customerID, scope)...,
	)
}

func scanReturn(row pgx.Row) (ledger.ReturnRecord, error) {
	var (
		id    pgtype.UUID
		ref   pgtype.Text
		date  pgtype.Date
		total pgtype.Numeric
	)
	if err := row.Scan(&id, &ref, &date, &total); err != nil {
		return ledger.ReturnRecord{}, err
	}
	return ledger.ReturnRecord{ID: toUUID(id), ReferenceNo: ref.String, Date: toTime(date), Total: toDecimal(total)}, nil
}

// ReturnPayments implements ledger.ReturnPaymentSource.
func (s *Store) ReturnPayments(ctx context.Context, returnIDs []uuid.UUID, r *ledger.DateRange) ([]ledger.ReturnPaymentRecord, error) {
	if len(returnIDs) == 0 {
		return nil, nil
	}
	ids := idArgs(returnIDs)
	from, to := rangeArgs(r)
	return fetch(ctx, s, ledger.SourceReturnPayments,
		func(ctx context.Context) ([]ledger.ReturnPaymentRecord, error) {
			return collect(ctx, s.db, true, scanReturnPayment, privilegedReturnPaymentsSQL, ids, from, to)
		},
		func(ctx context.Context) ([]ledger.ReturnPaymentRecord, error) {
			return collect(ctx, s.db, false, scanReturnPayment, scopedReturnPaymentsSQL, ids, from, to)
		},
		slog.Int("returns", len(returnIDs)),
	)
}

func scanReturnPayment(row pgx.Row) (ledger.ReturnPaymentRecord, error) {
	var (
		id, returnID pgtype.UUID
		ref, method  pgtype.Text
		date         pgtype.Date
		amount       pgtype.Numeric
	)
	if err := row.Scan(&id, &ref, &date, &amount, &method, &returnID); err != nil {
		return ledger.ReturnPaymentRecord{}, err
	}
	return ledger.ReturnPaymentRecord{
		ID:          toUUID(id),
		ReferenceNo: ref.String,
		Date:        toTime(date),
		Amount:      toDecimal(amount),
		Method:      method.String,
		ReturnID:    toUUID(returnID),
	}, nil
}

// StudioOrders implements ledger.StudioOrderSource.
func (s *Store) StudioOrders(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, r *ledger.DateRange) ([]ledger.StudioOrderRecord, error) {
	from, to := rangeArgs(r)
	return fetch(ctx, s, ledger.SourceStudioOrders,
		func(ctx context.Context) ([]ledger.StudioOrderRecord, error) {
			return collect(ctx, s.db, true, scanStudioOrder, privilegedStudioOrdersSQL, scope.CompanyID, customerID, from, to)
		},
		func(ctx context.Context) ([]ledger.StudioOrderRecord, error) {
			return collect(ctx, s.db, false, scanStudioOrder, scopedStudioOrdersSQL, scope.CompanyID, customerID, from, to, branchArg(scope))
		},
		customerAttrs(customerID, scope)...,
	)
}

func scanStudioOrder(row pgx.Row) (ledger.StudioOrderRecord, error) {
	var (
		id            pgtype.UUID
		ref           pgtype.Text
		date          pgtype.Date
		cost, advance pgtype.Numeric
	)
	if err := row.Scan(&id, &ref, &date, &cost, &advance); err != nil {
		return ledger.StudioOrderRecord{}, err
	}
	return ledger.StudioOrderRecord{
		ID:          toUUID(id),
		ReferenceNo: ref.String,
		Date:        toTime(date),
		TotalCost:   toDecimal(cost),
		AdvancePaid: toDecimal(advance),
	}, nil
}

// ProductionStageCosts implements ledger.StageCostSource.
func (s *Store) ProductionStageCosts(ctx context.Context, saleIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal)
	if len(saleIDs) == 0 {
		return out, nil
	}
	type stageCost struct {
		saleID uuid.UUID
		cost   decimal.Decimal
	}
	rows, err := collect(ctx, s.db, false, func(row pgx.Row) (stageCost, error) {
		var (
			id   pgtype.UUID
			cost pgtype.Numeric
		)
		if err := row.Scan(&id, &cost); err != nil {
			return stageCost{}, err
		}
		return stageCost{saleID: toUUID(id), cost: toDecimal(cost)}, nil
	}, stageCostsSQL, idArgs(saleIDs))
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.saleID] = out[r.saleID].Add(r.cost)
	}
	return out, nil
}

// Rentals implements ledger.RentalSource.
func (s *Store) Rentals(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, r *ledger.DateRange) ([]ledger.RentalRecord, error) {
	from, to := rangeArgs(r)
	return fetch(ctx, s, ledger.SourceRentals,
		func(ctx context.Context) ([]ledger.RentalRecord, error) {
			return collect(ctx, s.db, true, scanRental, privilegedRentalsSQL, scope.CompanyID, customerID, from, to)
		},
		func(ctx context.Context) ([]ledger.RentalRecord, error) {
			return collect(ctx, s.db, false, scanRental, scopedRentalsSQL, scope.CompanyID, customerID, from, to, branchArg(scope))
		},
		customerAttrs(customerID, scope)...,
	)
}

func scanRental(row pgx.Row) (ledger.RentalRecord, error) {
	var (
		id              pgtype.UUID
		ref             pgtype.Text
		pickup, booking pgtype.Date
		created         pgtype.Timestamptz
		total           pgtype.Numeric
	)
	if err := row.Scan(&id, &ref, &pickup, &booking, &created, &total); err != nil {
		return ledger.RentalRecord{}, err
	}
	return ledger.RentalRecord{
		ID:          toUUID(id),
		ReferenceNo: ref.String,
		PickupDate:  toTime(pickup),
		BookingDate: toTime(booking),
		CreatedAt:   toTimestamp(created),
		TotalAmount: toDecimal(total),
	}, nil
}

// RentalPayments implements ledger.RentalPaymentSource.
func (s *Store) RentalPayments(ctx context.Context, rentalIDs []uuid.UUID, r *ledger.DateRange) ([]ledger.RentalPaymentRecord, error) {
	if len(rentalIDs) == 0 {
		return nil, nil
	}
	ids := idArgs(rentalIDs)
	from, to := rangeArgs(r)
	return fetch(ctx, s, ledger.SourceRentalPayments,
		func(ctx context.Context) ([]ledger.RentalPaymentRecord, error) {
			return collect(ctx, s.db, true, scanRentalPayment, privilegedRentalPaymentsSQL, ids, from, to)
		},
		func(ctx context.Context) ([]ledger.RentalPaymentRecord, error) {
			return collect(ctx, s.db, false, scanRentalPayment, scopedRentalPaymentsSQL, ids, from, to)
		},
		slog.Int("rentals", len(rentalIDs)),
	)
}

func scanRentalPayment(row pgx.Row) (ledger.RentalPaymentRecord, error) {
	var (
		id, rentalID pgtype.UUID
		ref, method  pgtype.Text
		date         pgtype.Date
		amount       pgtype.Numeric
	)
	if err := row.Scan(&id, &ref, &date, &amount, &method, &rentalID); err != nil {
		return ledger.RentalPaymentRecord{}, err
	}
	return ledger.RentalPaymentRecord{
		ID:          toUUID(id),
		ReferenceNo: ref.String,
		Date:        toTime(date),
		Amount:      toDecimal(amount),
		Method:      method.String,
		RentalID:    toUUID(rentalID),
	}, nil
}

// InvoiceItems implements ledger.InvoiceItemSource.
func (s *Store) InvoiceItems(ctx context.Context, saleIDs []uuid.UUID) (map[uuid.UUID][]ledger.InvoiceItem, error) {
	out := make(map[uuid.UUID][]ledger.InvoiceItem)
	if len(saleIDs) == 0 {
		return out, nil
	}
	type saleItem struct {
		saleID uuid.UUID
		item   ledger.InvoiceItem
	}
	rows, err := collect(ctx, s.db, false, func(row pgx.Row) (saleItem, error) {
		var (
			saleID                pgtype.UUID
			name                  pgtype.Text
			qty, unitPrice, total pgtype.Numeric
		)
		if err := row.Scan(&saleID, &name, &qty, &unitPrice, &total); err != nil {
			return saleItem{}, err
		}
		return saleItem{saleID: toUUID(saleID), item: ledger.InvoiceItem{
			ItemName:  name.String,
			Quantity:  toDecimal(qty),
			UnitPrice: toDecimal(unitPrice),
			Total:     toDecimal(total),
		}}, nil
	}, invoiceItemsSQL, idArgs(saleIDs))
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.saleID] = append(out[r.saleID], r.item)
	}
	return out, nil
}

// Customer implements ledger.CustomerSource.
func (s *Store) Customer(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope) (ledger.CustomerRecord, error) {
	var (
		id                                pgtype.UUID
		name, phone, email, city, address pgtype.Text
		creditLimit, opening              pgtype.Numeric
	)
	err := s.db.QueryRow(ctx, customerSQL, customerID, scope.CompanyID).
		Scan(&id, &name, &phone, &email, &city, &address, &creditLimit, &opening)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.CustomerRecord{}, ledger.ErrCustomerNotFound
		}
		return ledger.CustomerRecord{}, classify(err, false)
	}
	return ledger.CustomerRecord{
		ID:             toUUID(id),
		Name:           name.String,
		Phone:          phone.String,
		Email:          email.String,
		City:           city.String,
		Address:        address.String,
		CreditLimit:    toDecimal(creditLimit),
		OpeningBalance: toDecimal(opening),
	}, nil
}
