// Package pgstore reads customer ledger events from PostgreSQL.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// SQLSTATE codes the store translates.
const (
	codeUndefinedFunction     = "42883"
	codeInsufficientPrivilege = "42501"
	codeUndefinedTable        = "42P01"
)

// Querier is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx the store uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Options configures a Store.
type Options struct {
	Logger   *slog.Logger
	Recorder ledger.FallbackRecorder
	// ScopedOnly skips the privileged accessors entirely.
	ScopedOnly bool
}

// Store implements every ledger source against PostgreSQL.
type Store struct {
	db         Querier
	logger     *slog.Logger
	recorder   ledger.FallbackRecorder
	scopedOnly bool
}

// New constructs a Store.
func New(db Querier, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, recorder: opts.Recorder, scopedOnly: opts.ScopedOnly}
}

// Sources exposes the store as the engine's source set.
func (s *Store) Sources() ledger.Sources {
	return ledger.Sources{
		Invoices:       s,
		Payments:       s,
		Returns:        s,
		ReturnPayments: s,
		StudioOrders:   s,
		StageCosts:     s,
		Rentals:        s,
		RentalPayments: s,
		InvoiceItems:   s,
		Customers:      s,
	}
}

// fetch runs the privileged accessor with a scoped fallback.
func fetch[T any](ctx context.Context, s *Store, source string, privileged, scoped ledger.FetchFunc[T], attrs ...slog.Attr) ([]T, error) {
	strategy := ledger.PrivilegedThenScopedFetch[T]{
		Source:   source,
		Scoped:   scoped,
		Logger:   s.logger,
		Recorder: s.recorder,
	}
	if !s.scopedOnly {
		strategy.Privileged = privileged
	}
	return strategy.Fetch(ctx, attrs...)
}

func customerAttrs(customerID uuid.UUID, scope ledger.CompanyScope) []slog.Attr {
	return []slog.Attr{
		slog.String("customer_id", customerID.String()),
		slog.String("company_id", scope.CompanyID.String()),
	}
}

// classify maps driver errors onto ledger sentinels. onPrivileged marks
// errors raised by a privileged accessor call.
func classify(err error, onPrivileged bool) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUndefinedFunction, codeInsufficientPrivilege:
		if onPrivileged {
			return fmt.Errorf("%w: %s", ledger.ErrPrivilegedUnavailable, pgErr.Message)
		}
	case codeUndefinedTable:
		return fmt.Errorf("%w: %s", ledger.ErrFeatureNotProvisioned, pgErr.Message)
	}
	return err
}

// collect runs query and scans every row with scan.
func collect[T any](ctx context.Context, db Querier, onPrivileged bool, scan func(pgx.Row) (T, error), query string, args ...any) ([]T, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err, onPrivileged)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, onPrivileged)
	}
	return out, nil
}
