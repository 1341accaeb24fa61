package ledger

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatusFor derives the payment state of an invoice.
func InvoiceStatusFor(adjusted, paid decimal.Decimal) InvoiceStatus {
	switch {
	case paid.GreaterThanOrEqual(adjusted):
		return StatusFullyPaid
	case paid.IsPositive():
		return StatusPartiallyPaid
	default:
		return StatusUnpaid
	}
}

// pending is the unpaid part of an invoice, never negative.
func pending(adjusted, paid decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, adjusted.Sub(paid))
}

// BuildInvoices derives the invoice view for invoices dated inside window,
// ascending by date.
func (n Normalizer) BuildInvoices(s Snapshot, window DateRange) []Invoice {
	records := make([]InvoiceRecord, 0, len(s.Invoices))
	for _, inv := range s.Invoices {
		if window.Contains(inv.Date) {
			records = append(records, inv)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !Day(a.Date).Equal(Day(b.Date)) {
			return Day(a.Date).Before(Day(b.Date))
		}
		if a.ReferenceNo != b.ReferenceNo {
			return a.ReferenceNo < b.ReferenceNo
		}
		return a.ID.String() < b.ID.String()
	})

	out := make([]Invoice, 0, len(records))
	for _, inv := range records {
		adjusted := n.AdjustedTotal(inv, s.StageCosts)
		out = append(out, Invoice{
			ID:            inv.ID,
			InvoiceNo:     inv.ReferenceNo,
			Date:          Day(inv.Date),
			Kind:          n.Classify(inv),
			InvoiceTotal:  adjusted,
			Items:         invoiceLines(s.Items[inv.ID]),
			Status:        InvoiceStatusFor(adjusted, inv.PaidAmount),
			PaidAmount:    inv.PaidAmount,
			PendingAmount: pending(adjusted, inv.PaidAmount),
		})
	}
	return out
}

func invoiceLines(items []InvoiceItem) []InvoiceLine {
	lines := make([]InvoiceLine, 0, len(items))
	for _, it := range items {
		total := it.Total
		if total.IsZero() {
			total = it.Quantity.Mul(it.UnitPrice)
		}
		lines = append(lines, InvoiceLine{
			ItemName:  it.ItemName,
			Qty:       it.Quantity,
			Rate:      it.UnitPrice,
			LineTotal: total,
		})
	}
	return lines
}

// BuildPayments derives the payments view for sale payments dated inside window.
func BuildPayments(s Snapshot, window DateRange) []Payment {
	invoiceNo := make(map[uuid.UUID]string, len(s.Invoices))
	for _, inv := range s.Invoices {
		invoiceNo[inv.ID] = inv.ReferenceNo
	}
	records := make([]PaymentRecord, 0, len(s.Payments))
	for _, p := range s.Payments {
		if window.Contains(p.Date) {
			records = append(records, p)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !Day(a.Date).Equal(Day(b.Date)) {
			return Day(a.Date).Before(Day(b.Date))
		}
		if a.ReferenceNo != b.ReferenceNo {
			return a.ReferenceNo < b.ReferenceNo
		}
		return a.ID.String() < b.ID.String()
	})

	out := make([]Payment, 0, len(records))
	for _, p := range records {
		applied := []string{}
		if no, ok := invoiceNo[p.SaleID]; ok {
			applied = append(applied, no)
		}
		out = append(out, Payment{
			ID:              p.ID,
			PaymentNo:       p.ReferenceNo,
			Date:            Day(p.Date),
			Amount:          p.Amount,
			Method:          methodLabel(p.Method),
			ReferenceNo:     p.ReferenceNo,
			AppliedInvoices: applied,
			Status:          PaymentStatusCompleted,
		})
	}
	return out
}
