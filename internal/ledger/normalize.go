package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultStudioPrefix marks studio sales among invoices whose kind is unspecified.
const DefaultStudioPrefix = "STD-"

// Snapshot holds every record loaded for one customer.
type Snapshot struct {
	Customer       *CustomerRecord
	Invoices       []InvoiceRecord
	Payments       []PaymentRecord
	Returns        []ReturnRecord
	ReturnPayments []ReturnPaymentRecord
	StudioOrders   []StudioOrderRecord
	StageCosts     map[uuid.UUID]decimal.Decimal
	Rentals        []RentalRecord
	RentalPayments []RentalPaymentRecord
	Items          map[uuid.UUID][]InvoiceItem
}

// Normalizer turns raw records into ledger transactions.
type Normalizer struct {
	StudioPrefix string
}

// NewNormalizer returns a Normalizer using prefix, or DefaultStudioPrefix when empty.
func NewNormalizer(prefix string) Normalizer {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultStudioPrefix
	}
	return Normalizer{StudioPrefix: prefix}
}

// Classify resolves the invoice kind, consulting the reference prefix only
// when the source left it unspecified.
func (n Normalizer) Classify(inv InvoiceRecord) InvoiceKind {
	if inv.Kind != KindUnspecified {
		return inv.Kind
	}
	prefix := n.StudioPrefix
	if prefix == "" {
		prefix = DefaultStudioPrefix
	}
	if strings.HasPrefix(strings.ToUpper(inv.ReferenceNo), strings.ToUpper(prefix)) {
		return KindStudio
	}
	return KindRetail
}

// AdjustedTotal is the billed amount of an invoice: the total plus stage
// costs for studio sales.
func (n Normalizer) AdjustedTotal(inv InvoiceRecord, stageCosts map[uuid.UUID]decimal.Decimal) decimal.Decimal {
	if n.Classify(inv) != KindStudio {
		return inv.Total
	}
	return inv.Total.Add(stageCosts[inv.ID])
}

// Normalize converts the snapshot into transactions in deterministic order.
// Running balances are left zero.
func (n Normalizer) Normalize(s Snapshot) []Transaction {
	invoiceNo := make(map[uuid.UUID]string, len(s.Invoices))
	for _, inv := range s.Invoices {
		invoiceNo[inv.ID] = inv.ReferenceNo
	}
	returnNo := make(map[uuid.UUID]string, len(s.Returns))
	for _, r := range s.Returns {
		returnNo[r.ID] = r.ReferenceNo
	}
	rentalNo := make(map[uuid.UUID]string, len(s.Rentals))
	for _, r := range s.Rentals {
		rentalNo[r.ID] = r.ReferenceNo
	}

	total := len(s.Invoices) + len(s.Payments) + len(s.Returns) + len(s.ReturnPayments) +
		len(s.StudioOrders) + len(s.Rentals) + len(s.RentalPayments)
	out := make([]Transaction, 0, total)

	sales := make([]Transaction, 0, len(s.Invoices))
	for _, inv := range s.Invoices {
		docType := DocSale
		label := "Sale Invoice"
		if n.Classify(inv) == KindStudio {
			docType = DocStudioSale
			label = "Studio Sale Invoice"
		}
		sales = append(sales, Transaction{
			ID:           inv.ID,
			Date:         Day(inv.Date),
			ReferenceNo:  inv.ReferenceNo,
			DocumentType: docType,
			Description:  fmt.Sprintf("%s %s", label, inv.ReferenceNo),
			Debit:        n.AdjustedTotal(inv, s.StageCosts),
			Credit:       decimal.Zero,
		})
	}
	out = appendOrdered(out, sales)

	payments := make([]Transaction, 0, len(s.Payments))
	for _, p := range s.Payments {
		tx := Transaction{
			ID:             p.ID,
			Date:           Day(p.Date),
			ReferenceNo:    p.ReferenceNo,
			DocumentType:   DocPayment,
			Description:    "Payment via " + methodLabel(p.Method),
			PaymentAccount: methodLabel(p.Method),
			Debit:          decimal.Zero,
			Credit:         p.Amount,
			Notes:          p.Notes,
		}
		if no, ok := invoiceNo[p.SaleID]; ok {
			tx.LinkedInvoices = []string{no}
		}
		payments = append(payments, tx)
	}
	out = appendOrdered(out, payments)

	returns := make([]Transaction, 0, len(s.Returns))
	for _, r := range s.Returns {
		returns = append(returns, Transaction{
			ID:           r.ID,
			Date:         Day(r.Date),
			ReferenceNo:  r.ReferenceNo,
			DocumentType: DocSaleReturn,
			Description:  "Sale Return " + r.ReferenceNo,
			Debit:        decimal.Zero,
			Credit:       r.Total,
		})
	}
	out = appendOrdered(out, returns)

	refunds := make([]Transaction, 0, len(s.ReturnPayments))
	for _, p := range s.ReturnPayments {
		tx := Transaction{
			ID:             p.ID,
			Date:           Day(p.Date),
			ReferenceNo:    p.ReferenceNo,
			DocumentType:   DocReturnPayment,
			Description:    "Return refund via " + methodLabel(p.Method),
			PaymentAccount: methodLabel(p.Method),
			Debit:          decimal.Zero,
			Credit:         p.Amount,
		}
		if no, ok := returnNo[p.ReturnID]; ok {
			tx.LinkedInvoices = []string{no}
		}
		refunds = append(refunds, tx)
	}
	out = appendOrdered(out, refunds)

	orders := make([]Transaction, 0, len(s.StudioOrders))
	for _, o := range s.StudioOrders {
		orders = append(orders, Transaction{
			ID:           o.ID,
			Date:         Day(o.Date),
			ReferenceNo:  o.ReferenceNo,
			DocumentType: DocStudioOrder,
			Description:  "Studio Order " + o.ReferenceNo,
			Debit:        o.TotalCost,
			Credit:       o.AdvancePaid,
		})
	}
	out = appendOrdered(out, orders)

	rentals := make([]Transaction, 0, len(s.Rentals))
	for _, r := range s.Rentals {
		rentals = append(rentals, Transaction{
			ID:           r.ID,
			Date:         r.EffectiveDate(),
			ReferenceNo:  r.ReferenceNo,
			DocumentType: DocRental,
			Description:  "Rental Booking " + r.ReferenceNo,
			Debit:        r.TotalAmount,
			Credit:       decimal.Zero,
		})
	}
	out = appendOrdered(out, rentals)

	rentalPayments := make([]Transaction, 0, len(s.RentalPayments))
	for _, p := range s.RentalPayments {
		tx := Transaction{
			ID:             p.ID,
			Date:           Day(p.Date),
			ReferenceNo:    p.ReferenceNo,
			DocumentType:   DocRentalPayment,
			Description:    "Rental Payment via " + methodLabel(p.Method),
			PaymentAccount: methodLabel(p.Method),
			Debit:          decimal.Zero,
			Credit:         p.Amount,
		}
		if no, ok := rentalNo[p.RentalID]; ok {
			tx.LinkedInvoices = []string{no}
		}
		rentalPayments = append(rentalPayments, tx)
	}
	out = appendOrdered(out, rentalPayments)

	return out
}

// appendOrdered sorts one source by (date, reference, id), drops zero-value
// events and appends the rest.
func appendOrdered(dst, src []Transaction) []Transaction {
	sort.SliceStable(src, func(i, j int) bool {
		a, b := src[i], src[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.ReferenceNo != b.ReferenceNo {
			return a.ReferenceNo < b.ReferenceNo
		}
		return a.ID.String() < b.ID.String()
	})
	for _, tx := range src {
		if tx.Debit.IsZero() && tx.Credit.IsZero() {
			continue
		}
		dst = append(dst, tx)
	}
	return dst
}

func methodLabel(method string) string {
	method = strings.TrimSpace(strings.ReplaceAll(method, "_", " "))
	if method == "" {
		return "Unspecified"
	}
	return cases.Title(language.English).String(method)
}

// partition splits transactions into those before from, those inside the
// window and drops those after it.
func partition(txs []Transaction, window DateRange) (prior, inWindow []Transaction) {
	for _, tx := range txs {
		switch {
		case !window.From.IsZero() && tx.Date.Before(window.From):
			prior = append(prior, tx)
		case window.Contains(tx.Date):
			inWindow = append(inWindow, tx)
		}
	}
	return prior, inWindow
}
