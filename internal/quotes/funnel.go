package quotes

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Funnel summarises how quotes move through review.
type Funnel struct {
	Total          int             `json:"total"`
	ByStatus       map[Status]int  `json:"by_status"`
	Converted      int             `json:"converted"`
	AcceptanceRate decimal.Decimal `json:"acceptance_rate"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
}

// BuildFunnel counts quotes per status. AcceptanceRate is accepted over
// decided quotes and ConversionRate is converted over all quotes; both are
// percentages and 0 when the denominator is 0.
func BuildFunnel(list []Quote) Funnel {
	f := Funnel{ByStatus: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		f.ByStatus[s] = 0
	}
	for _, q := range list {
		f.Total++
		f.ByStatus[q.Status]++
		if q.Converted() {
			f.Converted++
		}
	}
	accepted := f.ByStatus[StatusAccepted]
	f.AcceptanceRate = rate(accepted, accepted+f.ByStatus[StatusRejected])
	f.ConversionRate = rate(f.Converted, f.Total)
	return f
}

func rate(part, whole int) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole))).Round(2)
}
