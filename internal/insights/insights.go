// Package insights computes the spending aggregates shown on the dashboard.
//
// Every function is pure and total: it never fails, never mutates its input,
// and returns zeroed results for an empty bill set. Currency and percentage
// figures are rounded to two decimals.
package insights

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"foodie/internal/core"
)

type (
	// Periods holds rolling and calendar-to-date totals for one spend type.
	Periods struct {
		Rolling30d  float64 `json:"rolling30d"`
		MonthToDate float64 `json:"mtd"`
		YearToDate  float64 `json:"ytd"`
	}

	PeriodTotals struct {
		Local  Periods `json:"local"`
		Travel Periods `json:"travel"`
	}

	Stats struct {
		Avg    float64 `json:"avg"`
		Median float64 `json:"median"`
	}

	BillStats struct {
		Local  Stats `json:"local"`
		Travel Stats `json:"travel"`
	}

	// Series is a labelled list of values ready for a bar or pie chart.
	Series struct {
		Labels []string  `json:"labels"`
		Data   []float64 `json:"data"`
	}

	// Trend is the monthly total series with a trailing 3-month moving
	// average. The first two moving-average points are nil.
	Trend struct {
		Labels        []string   `json:"labels"`
		Totals        []float64  `json:"totals"`
		MovingAverage []*float64 `json:"movingAverage"`
	}

	VolatilityStats struct {
		StdDev      float64 `json:"stdDev"`
		OutlierDays int     `json:"outlierDays"`
	}

	// Share compares local and travel bills. TravelPremium is nil when the
	// local average is zero.
	Share struct {
		Labels        []string  `json:"labels"`
		Counts        []int     `json:"countData"`
		Values        []float64 `json:"valueData"`
		TravelPremium *float64  `json:"travelPremium"`
	}

	PartyCost struct {
		Size         int     `json:"size"`
		AvgPerPerson float64 `json:"avgPerPerson"`
	}

	StreakStats struct {
		LongestStreak int `json:"longestStreak"`
		LongestGap    int `json:"longestGap"`
	}

	WeekendStats struct {
		AvgWeekend   float64 `json:"avgWeekend"`
		AvgWeekday   float64 `json:"avgWeekday"`
		DeltaPercent float64 `json:"deltaPercent"`
	}

	Coverage struct {
		Percent    float64 `json:"coveragePercent"`
		AvgWith    float64 `json:"avgWith"`
		AvgWithout float64 `json:"avgWithout"`
	}

	CityTotal struct {
		City  string  `json:"city"`
		Total float64 `json:"total"`
	}

	CityShare struct {
		Top       []CityTotal `json:"top5"`
		HomeShare float64     `json:"homeShare"`
	}
)

const (
	outlierZScore = 2.0
	topCities     = 5
	unknownCity   = "Unknown"
)

var weekdayLabels = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Time-of-day buckets in display order.
const (
	BucketLunch  = "Lunch (10-15)"
	BucketDinner = "Dinner (18-22)"
	BucketLate   = "Late (22-03)"
	BucketOther  = "Other"
)

// TotalSpent sums spending per spend type over the last 30 days, the current
// month and the current year, relative to now's calendar date.
func TotalSpent(bills []core.Bill, now time.Time) PeriodTotals {
	today := core.DateOf(now)
	rollingStart := today.AddDays(-30)
	monthStart := core.NewDate(today.Year(), today.Month(), 1)
	yearStart := core.NewDate(today.Year(), time.January, 1)

	var local, travel [3]decimal.Decimal
	for _, b := range bills {
		if !b.HasDate() {
			continue
		}
		var acc *[3]decimal.Decimal
		switch b.SpendType {
		case core.SpendLocal:
			acc = &local
		case core.SpendTravel:
			acc = &travel
		default:
			continue
		}
		if !b.Date.Before(rollingStart.Time) {
			acc[0] = acc[0].Add(b.Amount)
		}
		if !b.Date.Before(monthStart.Time) {
			acc[1] = acc[1].Add(b.Amount)
		}
		if !b.Date.Before(yearStart.Time) {
			acc[2] = acc[2].Add(b.Amount)
		}
	}

	toPeriods := func(a [3]decimal.Decimal) Periods {
		return Periods{
			Rolling30d:  roundDec(a[0]),
			MonthToDate: roundDec(a[1]),
			YearToDate:  roundDec(a[2]),
		}
	}
	return PeriodTotals{Local: toPeriods(local), Travel: toPeriods(travel)}
}

// AverageAndMedian reports the mean and median bill per spend type.
func AverageAndMedian(bills []core.Bill) BillStats {
	stats := func(bucket []core.Bill) Stats {
		if len(bucket) == 0 {
			return Stats{}
		}
		costs := make([]float64, len(bucket))
		for i, b := range bucket {
			costs[i] = b.Cost()
		}
		return Stats{
			Avg:    core.Round2(Mean(bucket)),
			Median: core.Round2(Median(costs)),
		}
	}
	return BillStats{
		Local:  stats(BySpendType(bills, core.SpendLocal)),
		Travel: stats(BySpendType(bills, core.SpendTravel)),
	}
}

// Median returns the middle value of xs, or the mean of the two middle values
// for an even count. The input slice is not modified.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// WeekdayProfile returns the average bill per weekday, Sunday first.
func WeekdayProfile(bills []core.Bill) Series {
	var totals [7]decimal.Decimal
	var counts [7]int
	for _, b := range bills {
		if !b.HasDate() {
			continue
		}
		wd := b.Date.Weekday()
		totals[wd] = totals[wd].Add(b.Amount)
		counts[wd]++
	}
	data := make([]float64, 7)
	for i := range data {
		if counts[i] > 0 {
			data[i] = roundDec(totals[i].Div(decimal.NewFromInt(int64(counts[i]))))
		}
	}
	return Series{Labels: append([]string(nil), weekdayLabels...), Data: data}
}

// TimeOfDayMix sums spending into meal buckets by the local hour the bill was
// captured. Bills without a capture timestamp are skipped.
func TimeOfDayMix(bills []core.Bill) Series {
	labels := []string{BucketLunch, BucketDinner, BucketLate, BucketOther}
	totals := make([]decimal.Decimal, len(labels))
	for _, b := range bills {
		if b.CreatedAt.IsZero() {
			continue
		}
		i := timeBucket(b.CreatedAt.Hour())
		totals[i] = totals[i].Add(b.Amount)
	}
	data := make([]float64, len(totals))
	for i, t := range totals {
		data[i] = roundDec(t)
	}
	return Series{Labels: labels, Data: data}
}

func timeBucket(hour int) int {
	switch {
	case hour >= 10 && hour < 15:
		return 0
	case hour >= 18 && hour < 22:
		return 1
	case hour >= 22 || hour < 3:
		return 2
	default:
		return 3
	}
}

// Seasonality returns monthly totals in chronological order together with a
// trailing 3-month moving average.
func Seasonality(bills []core.Bill) Trend {
	months := MonthlyTotals(bills)
	tr := Trend{
		Labels:        make([]string, len(months)),
		Totals:        make([]float64, len(months)),
		MovingAverage: make([]*float64, len(months)),
	}
	for i, m := range months {
		tr.Labels[i] = m.Month.String()
		tr.Totals[i] = m.Total
		if i >= 2 {
			avg := roundDec(months[i-2].sum.Add(months[i-1].sum).Add(m.sum).Div(decimal.NewFromInt(3)))
			tr.MovingAverage[i] = &avg
		}
	}
	return tr
}

// Volatility measures how much daily spending varies. Days are bills summed
// per calendar date; outliers are days more than two standard deviations
// above the mean.
func Volatility(bills []core.Bill) VolatilityStats {
	byDay := map[string]decimal.Decimal{}
	for _, b := range bills {
		if !b.HasDate() {
			continue
		}
		byDay[b.Date.Key()] = byDay[b.Date.Key()].Add(b.Amount)
	}
	if len(byDay) < 2 {
		return VolatilityStats{}
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := decimal.Zero
	for _, k := range keys {
		total = total.Add(byDay[k])
	}
	n := decimal.NewFromInt(int64(len(keys)))
	mean := total.Div(n)

	variance := decimal.Zero
	for _, k := range keys {
		d := byDay[k].Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	stddev := math.Sqrt(variance.Div(n).InexactFloat64())

	out := VolatilityStats{StdDev: core.Round2(stddev)}
	if stddev == 0 {
		return out
	}
	meanF := mean.InexactFloat64()
	for _, k := range keys {
		if (byDay[k].InexactFloat64()-meanF)/stddev > outlierZScore {
			out.OutlierDays++
		}
	}
	return out
}

// LocalVsTravelShare compares bill counts and totals between local and
// travel spending.
func LocalVsTravelShare(bills []core.Bill) Share {
	local := BySpendType(bills, core.SpendLocal)
	travel := BySpendType(bills, core.SpendTravel)

	s := Share{
		Labels: []string{core.SpendLocal.String(), core.SpendTravel.String()},
		Counts: []int{len(local), len(travel)},
		Values: []float64{roundDec(sum(local)), roundDec(sum(travel))},
	}
	if avgLocal := Mean(local); avgLocal > 0 {
		premium := core.Round2(Mean(travel) / avgLocal)
		s.TravelPremium = &premium
	}
	return s
}

// FamilyInvolvement returns the average cost per person for each party size
// above one, ordered by size.
func FamilyInvolvement(bills []core.Bill) []PartyCost {
	perPerson := map[int]float64{}
	counts := map[int]int{}
	for _, b := range bills {
		size := b.PartySize()
		if size <= 1 {
			continue
		}
		perPerson[size] += b.Cost() / float64(size)
		counts[size]++
	}

	out := make([]PartyCost, 0, len(perPerson))
	for size, total := range perPerson {
		out = append(out, PartyCost{Size: size, AvgPerPerson: core.Round2(total / float64(counts[size]))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Size < out[j].Size })
	return out
}

// Streaks finds the longest run of consecutive days with a bill and the
// longest stretch of days without one between two bills.
func Streaks(bills []core.Bill) StreakStats {
	dates := DistinctDates(bills)
	switch len(dates) {
	case 0:
		return StreakStats{}
	case 1:
		return StreakStats{LongestStreak: 1}
	}

	longest, current, gap := 1, 1, 0
	for i := 1; i < len(dates); i++ {
		diff := dates[i].DaysSince(dates[i-1])
		if diff == 1 {
			current++
			continue
		}
		longest = max(longest, current)
		current = 1
		if diff > 1 {
			gap = max(gap, diff-1)
		}
	}
	return StreakStats{LongestStreak: max(longest, current), LongestGap: gap}
}

// DistinctDates returns the sorted set of dates that carry at least one bill.
func DistinctDates(bills []core.Bill) []core.Date {
	seen := map[string]struct{}{}
	var dates []core.Date
	for _, b := range bills {
		if !b.HasDate() {
			continue
		}
		if _, ok := seen[b.Date.Key()]; ok {
			continue
		}
		seen[b.Date.Key()] = struct{}{}
		dates = append(dates, b.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j].Time) })
	return dates
}

// WeekendEffect compares the average weekend bill with the average weekday
// bill. DeltaPercent is zero when there are no weekday bills.
func WeekendEffect(bills []core.Bill) WeekendStats {
	var weekend, weekday []core.Bill
	for _, b := range bills {
		if !b.HasDate() {
			continue
		}
		if b.Date.IsWeekend() {
			weekend = append(weekend, b)
		} else {
			weekday = append(weekday, b)
		}
	}
	avgWeekend, avgWeekday := Mean(weekend), Mean(weekday)
	out := WeekendStats{
		AvgWeekend: core.Round2(avgWeekend),
		AvgWeekday: core.Round2(avgWeekday),
	}
	if avgWeekday > 0 {
		out.DeltaPercent = core.Round2((avgWeekend - avgWeekday) / avgWeekday * 100)
	}
	return out
}

// AttachmentCoverage reports the share of bills with a photo and the average
// spend with and without one.
func AttachmentCoverage(bills []core.Bill) Coverage {
	if len(bills) == 0 {
		return Coverage{}
	}
	var with, without []core.Bill
	for _, b := range bills {
		if b.HasAttachment() {
			with = append(with, b)
		} else {
			without = append(without, b)
		}
	}
	return Coverage{
		Percent:    core.Round2(float64(len(with)) / float64(len(bills)) * 100),
		AvgWith:    core.Round2(Mean(with)),
		AvgWithout: core.Round2(Mean(without)),
	}
}

// CityMix ranks cities by total spend and reports the share spent in the home
// city. Ties keep the order in which cities first appear.
func CityMix(bills []core.Bill, homeCity string) CityShare {
	totals := map[string]decimal.Decimal{}
	var order []string
	grand := decimal.Zero
	for _, b := range bills {
		city := b.City
		if city == "" {
			city = unknownCity
		}
		if _, ok := totals[city]; !ok {
			order = append(order, city)
		}
		totals[city] = totals[city].Add(b.Amount)
		grand = grand.Add(b.Amount)
	}

	ranked := make([]CityTotal, len(order))
	for i, city := range order {
		ranked[i] = CityTotal{City: city, Total: roundDec(totals[city])}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return totals[ranked[i].City].GreaterThan(totals[ranked[j].City])
	})
	if len(ranked) > topCities {
		ranked = ranked[:topCities]
	}

	out := CityShare{Top: ranked}
	if grand.IsPositive() {
		out.HomeShare = roundDec(totals[homeCity].Div(grand).Mul(decimal.NewFromInt(100)))
	}
	return out
}

// BySpendType returns the bills of one spend type, preserving order.
func BySpendType(bills []core.Bill, st core.SpendType) []core.Bill {
	var out []core.Bill
	for _, b := range bills {
		if b.SpendType == st {
			out = append(out, b)
		}
	}
	return out
}

// Average returns Mean rounded to cents.
func Average(bills []core.Bill) float64 {
	return core.Round2(Mean(bills))
}

// Mean returns the unrounded average bill amount, or 0 for no bills.
func Mean(bills []core.Bill) float64 {
	if len(bills) == 0 {
		return 0
	}
	return sum(bills).Div(decimal.NewFromInt(int64(len(bills)))).InexactFloat64()
}

func sum(bills []core.Bill) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bills {
		total = total.Add(b.Amount)
	}
	return total
}

func roundDec(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
