package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Invariant check names.
const (
	CheckClosingBalance = "closing_balance"
	CheckRunningBalance = "running_balance"
	CheckNonNegative    = "non_negative_amounts"
	CheckAgingTotal     = "aging_total"
)

// ViolationRecorder counts failed invariant checks.
type ViolationRecorder interface {
	RecordViolation(check string)
}

type invariantChecker struct {
	strict   bool
	logger   *slog.Logger
	recorder ViolationRecorder
}

// report handles the first failed check. In strict mode it is returned; otherwise
// it is logged with context and counted, and the computation continues.
func (c invariantChecker) report(ctx context.Context, v *InvariantViolation, attrs ...any) error {
	if v == nil {
		return nil
	}
	if c.recorder != nil {
		c.recorder.RecordViolation(v.Check)
	}
	if c.strict {
		return v
	}
	args := append([]any{slog.String("check", v.Check), slog.String("detail", v.Detail)}, attrs...)
	c.logger.ErrorContext(ctx, "ledger invariant violated", args...)
	return nil
}

func checkLedger(txs []Transaction, sum LedgerSummary) *InvariantViolation {
	for _, tx := range txs {
		if tx.Debit.IsNegative() || tx.Credit.IsNegative() {
			return &InvariantViolation{
				Check:  CheckNonNegative,
				Detail: fmt.Sprintf("%s %s has debit %s credit %s", tx.DocumentType, tx.ReferenceNo, tx.Debit, tx.Credit),
			}
		}
	}
	expected := sum.OpeningBalance.Add(sum.TotalDebit).Sub(sum.TotalCredit)
	if !expected.Equal(sum.ClosingBalance) {
		return &InvariantViolation{
			Check:  CheckClosingBalance,
			Detail: fmt.Sprintf("closing %s, expected %s", sum.ClosingBalance, expected),
		}
	}
	last := sum.OpeningBalance
	if len(txs) > 0 {
		last = txs[len(txs)-1].RunningBalance
	}
	if !last.Equal(sum.ClosingBalance) {
		return &InvariantViolation{
			Check:  CheckRunningBalance,
			Detail: fmt.Sprintf("last running balance %s, closing %s", last, sum.ClosingBalance),
		}
	}
	return nil
}

func checkAging(report AgingReport, due decimal.Decimal) *InvariantViolation {
	if !report.Total.Equal(report.BucketSum()) || !report.Total.Equal(due) {
		return &InvariantViolation{
			Check:  CheckAgingTotal,
			Detail: fmt.Sprintf("total %s, buckets %s, due %s", report.Total, report.BucketSum(), due),
		}
	}
	return nil
}
