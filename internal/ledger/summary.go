package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Summarize aggregates window transactions. invoices supplies the paid
// amount of each invoice transaction by id.
func Summarize(txs []Transaction, opening decimal.Decimal, invoices []Invoice) LedgerSummary {
	paidByID := make(map[uuid.UUID]decimal.Decimal, len(invoices))
	for _, inv := range invoices {
		paidByID[inv.ID] = inv.PaidAmount
	}

	sum := LedgerSummary{
		OpeningBalance:       opening,
		TotalDebit:           decimal.Zero,
		TotalCredit:          decimal.Zero,
		TotalInvoiceAmount:   decimal.Zero,
		TotalPaymentReceived: decimal.Zero,
		PendingAmount:        decimal.Zero,
	}
	outstanding := decimal.Zero
	returned := decimal.Zero
	for _, tx := range txs {
		sum.TotalDebit = sum.TotalDebit.Add(tx.Debit)
		sum.TotalCredit = sum.TotalCredit.Add(tx.Credit)
		switch {
		case tx.DocumentType.IsInvoice():
			paid := paidByID[tx.ID]
			sum.TotalInvoices++
			sum.TotalInvoiceAmount = sum.TotalInvoiceAmount.Add(tx.Debit)
			outstanding = outstanding.Add(pending(tx.Debit, paid))
			switch InvoiceStatusFor(tx.Debit, paid) {
			case StatusFullyPaid:
				sum.FullyPaid++
			case StatusPartiallyPaid:
				sum.PartiallyPaid++
			default:
				sum.Unpaid++
			}
		case tx.DocumentType == DocPayment:
			sum.TotalPaymentReceived = sum.TotalPaymentReceived.Add(tx.Credit)
		case tx.DocumentType == DocSaleReturn:
			returned = returned.Add(tx.Credit)
		}
	}
	sum.PendingAmount = decimal.Max(decimal.Zero, outstanding.Sub(returned))
	sum.ClosingBalance = opening.Add(sum.TotalDebit).Sub(sum.TotalCredit)
	return sum
}
