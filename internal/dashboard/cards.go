// Package dashboard shapes bills, insights and achievements into the view
// models the front-end renders: insight cards, the landing overview, and the
// searchable restaurant list with its map markers.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"foodie/internal/core"
	"foodie/internal/insights"
)

// Chart kinds understood by the front-end.
const (
	ChartBar  = "bar"
	ChartPie  = "pie"
	ChartLine = "line"
)

const notAvailable = "N/A"

type (
	// Card is one tile on the spending page: either a text value (Lines) or
	// a chart.
	Card struct {
		Title       string   `json:"title"`
		Icon        string   `json:"icon"`
		Color       string   `json:"color"`
		Description string   `json:"description"`
		Lines       []string `json:"lines,omitempty"`
		Chart       *Chart   `json:"chart,omitempty"`
		Wide        bool     `json:"wide,omitempty"`
	}

	Chart struct {
		Kind     string    `json:"kind"`
		Labels   []string  `json:"labels"`
		Datasets []Dataset `json:"datasets"`
	}

	// Dataset values are nil where a point is absent (moving-average padding).
	Dataset struct {
		Label string     `json:"label"`
		Data  []*float64 `json:"data"`
	}
)

// Insights builds the spending page cards.
func Insights(bills []core.Bill, now time.Time, homeCity string) []Card {
	totals := insights.TotalSpent(bills, now)
	stats := insights.AverageAndMedian(bills)
	vol := insights.Volatility(bills)
	share := insights.LocalVsTravelShare(bills)
	streaks := insights.Streaks(bills)
	weekend := insights.WeekendEffect(bills)
	coverage := insights.AttachmentCoverage(bills)
	trend := insights.Seasonality(bills)

	premium := notAvailable
	if share.TravelPremium != nil {
		premium = fmt.Sprintf("%.2fx", *share.TravelPremium)
	}

	var perPerson []string
	for _, pc := range insights.FamilyInvolvement(bills) {
		perPerson = append(perPerson, fmt.Sprintf("%dp: %s", pc.Size, FormatEuros(pc.AvgPerPerson)))
	}
	if len(perPerson) == 0 {
		perPerson = []string{notAvailable}
	}

	return []Card{
		{
			Title: "Total Spent", Icon: "paid", Color: "var(--primary-color)",
			Description: "Total amount spent year-to-date (YTD) for local and travel categories.",
			Lines: []string{
				"Local: " + FormatEuros(totals.Local.YearToDate) + " (YTD)",
				"Travel: " + FormatEuros(totals.Travel.YearToDate) + " (YTD)",
			},
		},
		{
			Title: "Average Bill", Icon: "monitoring", Color: "var(--accent-purple)",
			Description: "The average cost of a single restaurant bill, separated by local and travel.",
			Lines: []string{
				"Local: " + FormatEuros(stats.Local.Avg),
				"Travel: " + FormatEuros(stats.Travel.Avg),
			},
		},
		{
			Title: "Weekday Profile", Icon: "calendar_month", Color: "var(--accent-blue)",
			Description: "Average spending for each day of the week.",
			Chart:       seriesChart(ChartBar, "Weekday Profile", insights.WeekdayProfile(bills)),
		},
		{
			Title: "Time-of-day Mix", Icon: "schedule", Color: "var(--accent-yellow)",
			Description: "A breakdown of spending by time of day: Lunch (10-15), Dinner (18-22) and Late Night (22-03).",
			Chart:       seriesChart(ChartPie, "Time-of-day Mix", insights.TimeOfDayMix(bills)),
		},
		{
			Title: "Seasonality & Trend", Icon: "trending_up", Color: "var(--primary-color)", Wide: true,
			Description: "Monthly total spend and a 3-month moving average to show trends over time.",
			Chart: &Chart{
				Kind:   ChartLine,
				Labels: trend.Labels,
				Datasets: []Dataset{
					{Label: "Total Spend", Data: points(trend.Totals)},
					{Label: "3-Month Avg", Data: trend.MovingAverage},
				},
			},
		},
		{
			Title: "Spend Volatility", Icon: "warning", Color: "var(--accent-red)",
			Description: "Measures how much your daily spending varies. Outlier days are unusually high spending days.",
			Lines: []string{
				"Std Dev: " + FormatEuros(vol.StdDev),
				fmt.Sprintf("Outlier Days: %d", vol.OutlierDays),
			},
		},
		{
			Title: "Spend Share (€)", Icon: "public", Color: "var(--accent-purple)",
			Description: "The share of total spending between local and travel categories.",
			Chart:       seriesChart(ChartPie, "Spend Share (€)", insights.Series{Labels: share.Labels, Data: share.Values}),
		},
		{
			Title: "Travel Premium", Icon: "flight_takeoff", Color: "var(--accent-blue)",
			Description: "The ratio of your average travel bill to your average local bill. A value of 1.5x means you spend 50% more on average when traveling.",
			Lines:       []string{premium},
		},
		{
			Title: "Avg. Cost per Person", Icon: "groups", Color: "var(--accent-yellow)",
			Description: "The average cost per person when dining with family members.",
			Lines:       perPerson,
		},
		{
			Title: "Dining Streaks", Icon: "local_fire_department", Color: "var(--accent-red)",
			Description: "The longest streak of consecutive days with a restaurant bill, and the longest gap without one.",
			Lines: []string{
				fmt.Sprintf("Streak: %d days", streaks.LongestStreak),
				fmt.Sprintf("Gap: %d days", streaks.LongestGap),
			},
		},
		{
			Title: "Weekend Effect", Icon: "deck", Color: "var(--primary-color)",
			Description: "The percentage difference in average spending between weekends (Sat-Sun) and weekdays (Mon-Fri).",
			Lines:       []string{fmt.Sprintf("Δ %.2f%%", weekend.DeltaPercent)},
		},
		{
			Title: "Photo Coverage", Icon: "attachment", Color: "var(--accent-purple)",
			Description: "The percentage of your bills that have a photo attached.",
			Lines:       []string{fmt.Sprintf("%.2f%%", coverage.Percent)},
		},
		{
			Title: "Top Travel City", Icon: "flight", Color: "var(--accent-blue)",
			Description: fmt.Sprintf("The city where you have spent the most money while traveling (excluding %s).", homeCity),
			Lines:       []string{TopTravelCity(bills, homeCity)},
		},
	}
}

// TopTravelCity returns the highest-spend city other than the home city.
func TopTravelCity(bills []core.Bill, homeCity string) string {
	for _, c := range insights.CityMix(bills, homeCity).Top {
		if !strings.EqualFold(c.City, homeCity) {
			return c.City
		}
	}
	return notAvailable
}

// FormatEuros renders an amount with two decimals and a euro suffix.
func FormatEuros(v float64) string {
	return fmt.Sprintf("%.2f€", v)
}

func seriesChart(kind, label string, s insights.Series) *Chart {
	return &Chart{
		Kind:     kind,
		Labels:   s.Labels,
		Datasets: []Dataset{{Label: label, Data: points(s.Data)}},
	}
}

func points(xs []float64) []*float64 {
	out := make([]*float64, len(xs))
	for i := range xs {
		v := xs[i]
		out[i] = &v
	}
	return out
}
