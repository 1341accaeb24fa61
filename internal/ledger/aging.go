package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Age buckets the due amount of every outstanding invoice as of asOf.
// Invoices dated after asOf count as current.
func Age(invoices []InvoiceRecord, asOf time.Time) AgingReport {
	today := Day(asOf)
	report := AgingReport{
		AsOf:       today,
		Current:    decimal.Zero,
		Days1To30:  decimal.Zero,
		Days31To60: decimal.Zero,
		Days61To90: decimal.Zero,
		Days90Plus: decimal.Zero,
		Total:      decimal.Zero,
	}
	for _, inv := range invoices {
		if !inv.DueAmount.IsPositive() {
			continue
		}
		days := daysBetween(Day(inv.Date), today)
		switch {
		case days <= 0:
			report.Current = report.Current.Add(inv.DueAmount)
		case days <= 30:
			report.Days1To30 = report.Days1To30.Add(inv.DueAmount)
		case days <= 60:
			report.Days31To60 = report.Days31To60.Add(inv.DueAmount)
		case days <= 90:
			report.Days61To90 = report.Days61To90.Add(inv.DueAmount)
		default:
			report.Days90Plus = report.Days90Plus.Add(inv.DueAmount)
		}
	}
	report.Total = report.BucketSum()
	return report
}

// OutstandingDue sums the positive due amounts of invoices.
func OutstandingDue(invoices []InvoiceRecord) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		if inv.DueAmount.IsPositive() {
			total = total.Add(inv.DueAmount)
		}
	}
	return total
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
