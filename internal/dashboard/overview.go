package dashboard

import (
	"foodie/internal/achievements"
	"foodie/internal/core"
	"foodie/internal/insights"
)

// landingBadges are the achievements the landing page picks highlights from.
var landingBadges = map[string]bool{
	"first-bite":      true,
	"globe-taster":    true,
	"weekend-warrior": true,
	"family-feast":    true,
}

const highlightCount = 3

// Overview is the landing page header.
type Overview struct {
	TotalSpent       float64              `json:"totalSpent"`
	AverageBill      float64              `json:"averageBill"`
	BillsTracked     int                  `json:"billsTracked"`
	TopMonth         string               `json:"topMonth"`
	CountriesVisited int                  `json:"countriesVisited"`
	WeekendAverage   float64              `json:"weekendAverage"`
	TopCity          string               `json:"topCity"`
	Highlights       []achievements.Badge `json:"highlights"`
	Markers          MarkerSet            `json:"markers"`
}

// NewOverview builds the landing page from the full bill history.
func NewOverview(bills []core.Bill, opts achievements.Options) Overview {
	sum := insights.Summary(bills)
	ov := Overview{
		TotalSpent:       sum.TotalSpent,
		AverageBill:      sum.AvgBill,
		BillsTracked:     sum.Bills,
		TopMonth:         notAvailable,
		CountriesVisited: sum.Countries,
		WeekendAverage:   insights.WeekendEffect(bills).AvgWeekend,
		TopCity:          notAvailable,
		Markers:          Markers(Activities(bills)),
	}
	if sum.TopMonth != nil && sum.TopMonth.Total > 0 {
		ov.TopMonth = sum.TopMonth.Label
	}
	if top := insights.CityMix(bills, opts.HomeCity).Top; len(top) > 0 {
		ov.TopCity = top[0].City
	}

	var pool []achievements.Badge
	for _, b := range achievements.Evaluate(bills, opts) {
		if landingBadges[b.ID] {
			pool = append(pool, b)
		}
	}
	ov.Highlights = achievements.Highlights(pool, highlightCount)
	return ov
}
