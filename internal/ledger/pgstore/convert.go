package pgstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

func toDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func toTime(d pgtype.Date) time.Time {
	if !d.Valid || d.InfinityModifier != pgtype.Finite {
		return time.Time{}
	}
	return ledger.Day(d.Time)
}

func toTimestamp(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid || ts.InfinityModifier != pgtype.Finite {
		return time.Time{}
	}
	return ts.Time
}

func toUUID(v pgtype.UUID) uuid.UUID {
	if !v.Valid {
		return uuid.Nil
	}
	return uuid.UUID(v.Bytes)
}

func dateArg(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: ledger.Day(t), Valid: true}
}

// rangeArgs renders an optional range as two nullable date parameters.
func rangeArgs(r *ledger.DateRange) (pgtype.Date, pgtype.Date) {
	if r == nil {
		return pgtype.Date{}, pgtype.Date{}
	}
	return dateArg(r.From), dateArg(r.To)
}

func branchArg(scope ledger.CompanyScope) pgtype.UUID {
	if scope.BranchID == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *scope.BranchID, Valid: true}
}

func idArgs(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
