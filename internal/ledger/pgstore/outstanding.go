package pgstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const outstandingCustomersSQL = `SELECT company_id, customer_id
FROM sales
WHERE due_amount > 0
  AND status <> 'cancelled'
GROUP BY company_id, customer_id
ORDER BY MAX(invoice_date) DESC, company_id, customer_id
LIMIT $1`

// CustomerRef identifies one customer within its company.
type CustomerRef struct {
	CompanyID  uuid.UUID
	CustomerID uuid.UUID
}

// OutstandingCustomers lists customers that still owe money, most recently
// invoiced first.
func (s *Store) OutstandingCustomers(ctx context.Context, limit int) ([]CustomerRef, error) {
	if limit <= 0 {
		limit = 500
	}
	return collect(ctx, s.db, false, func(row pgx.Row) (CustomerRef, error) {
		var company, customer pgtype.UUID
		if err := row.Scan(&company, &customer); err != nil {
			return CustomerRef{}, err
		}
		return CustomerRef{CompanyID: toUUID(company), CustomerID: toUUID(customer)}, nil
	}, outstandingCustomersSQL, limit)
}
