package insights

import (
	"sort"

	"github.com/shopspring/decimal"

	"foodie/internal/core"
)

// MonthTotal aggregates the bills of one month.
type MonthTotal struct {
	Month           core.YearMonth `json:"-"`
	Label           string         `json:"month"`
	Total           float64        `json:"total"`
	Count           int            `json:"count"`
	WithAttachments int            `json:"withAttachments"`

	sum decimal.Decimal
}

// Sum returns the unrounded total of the month.
func (m MonthTotal) Sum() decimal.Decimal { return m.sum }

// Average returns the mean bill of the month.
func (m MonthTotal) Average() float64 {
	if m.Count == 0 {
		return 0
	}
	return m.sum.Div(decimal.NewFromInt(int64(m.Count))).InexactFloat64()
}

// AttachmentShare returns the fraction (0..1) of the month's bills with a photo.
func (m MonthTotal) AttachmentShare() float64 {
	if m.Count == 0 {
		return 0
	}
	return float64(m.WithAttachments) / float64(m.Count)
}

// MonthlyTotals groups bills by month key, ordered chronologically by
// (year, month). Bills without a month key are skipped.
func MonthlyTotals(bills []core.Bill) []MonthTotal {
	sums := map[core.YearMonth]decimal.Decimal{}
	acc := map[core.YearMonth]*MonthTotal{}
	for _, b := range bills {
		if b.Month.IsZero() {
			continue
		}
		m, ok := acc[b.Month]
		if !ok {
			m = &MonthTotal{Month: b.Month, Label: b.Month.String()}
			acc[b.Month] = m
		}
		sums[b.Month] = sums[b.Month].Add(b.Amount)
		m.Count++
		if b.HasAttachment() {
			m.WithAttachments++
		}
	}

	out := make([]MonthTotal, 0, len(acc))
	for ym, m := range acc {
		m.sum = sums[ym]
		m.Total = roundDec(sums[ym])
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Less(out[j].Month) })
	return out
}

// Totals is the headline summary of the whole bill history.
type Totals struct {
	TotalSpent float64     `json:"totalSpent"`
	Bills      int         `json:"bills"`
	AvgBill    float64     `json:"avgBill"`
	Countries  int         `json:"countries"`
	TopMonth   *MonthTotal `json:"topMonth,omitempty"`
}

// Summary returns the overall totals. TopMonth is the month with the highest
// spend, the earliest one on ties, or nil when no bill has a month.
func Summary(bills []core.Bill) Totals {
	t := Totals{
		TotalSpent: roundDec(sum(bills)),
		Bills:      len(bills),
		AvgBill:    Average(bills),
		Countries:  len(Countries(bills)),
	}
	for _, m := range MonthlyTotals(bills) {
		if t.TopMonth == nil || m.sum.GreaterThan(t.TopMonth.sum) {
			top := m
			t.TopMonth = &top
		}
	}
	return t
}

// Countries returns the distinct non-empty countries in first-seen order.
func Countries(bills []core.Bill) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, b := range bills {
		if b.Country == "" {
			continue
		}
		if _, ok := seen[b.Country]; ok {
			continue
		}
		seen[b.Country] = struct{}{}
		out = append(out, b.Country)
	}
	return out
}
