package projects

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quoteflow/quoteflow/internal/pricing"
)

var hundred = decimal.NewFromInt(100)

// InvoiceStats counts invoices by payment state.
type InvoiceStats struct {
	Paid    int `json:"paid"`
	Pending int `json:"pending"`
	Overdue int `json:"overdue"`
	Total   int `json:"total"`
}

// Ledger is the payment position of a project at a point in time.
type Ledger struct {
	ProjectID              string          `json:"project_id"`
	ContractValue          pricing.KES     `json:"contract_value"`
	TotalInvoiced          pricing.KES     `json:"total_invoiced"`
	TotalPaid              pricing.KES     `json:"total_paid"`
	Outstanding            pricing.KES     `json:"outstanding"`
	PaymentProgressPercent decimal.Decimal `json:"payment_progress_percent"`
	CompletionPercent      decimal.Decimal `json:"completion_percent"`
	InvoiceStats           InvoiceStats    `json:"invoice_stats"`
	AsOf                   time.Time       `json:"as_of"`
}

// Derive computes the ledger from the project and its invoices. Overdue is
// evaluated against now on every call. Outstanding is not clamped, so an
// overpayment shows up as a negative balance.
func Derive(p Project, invoices []Invoice, now time.Time) Ledger {
	l := Ledger{
		ProjectID:              p.ID.String(),
		ContractValue:          p.ContractValue,
		PaymentProgressPercent: decimal.Zero,
		CompletionPercent:      decimal.Zero,
		AsOf:                   now,
	}
	for _, inv := range invoices {
		l.InvoiceStats.Total++
		l.TotalInvoiced += inv.Amount
		switch {
		case inv.IsPaid:
			l.InvoiceStats.Paid++
			l.TotalPaid += inv.Amount
		case inv.Overdue(now):
			l.InvoiceStats.Overdue++
		default:
			l.InvoiceStats.Pending++
		}
	}
	l.Outstanding = l.ContractValue - l.TotalPaid
	l.PaymentProgressPercent = percent(int64(l.TotalPaid), int64(l.ContractValue))
	l.CompletionPercent = percent(int64(l.InvoiceStats.Paid), int64(l.InvoiceStats.Total))
	return l
}

// percent returns part/whole*100 rounded to two places, or 0 when whole is 0.
func percent(part, whole int64) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole)).Round(2)
}
