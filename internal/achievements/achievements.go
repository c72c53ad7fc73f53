// Package achievements evaluates the gamification badges unlocked by a bill
// history. Each check is a pure predicate over the full set of bills.
package achievements

import (
	"sort"

	"github.com/shopspring/decimal"

	"foodie/internal/core"
	"foodie/internal/insights"
)

// Options carries the settings some checks depend on.
type Options struct {
	HomeCity string
}

// Check reports whether a badge is unlocked.
type Check func(bills []core.Bill, opts Options) bool

// Achievement describes one badge and the rule that unlocks it.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Check       Check
}

// Badge is the evaluated state of an achievement.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Unlocked    bool   `json:"unlocked"`
}

const (
	loyalistBills      = 20
	loyalistWindowDays = 90
	globeCountries     = 3
	warriorWeeks       = 6
	ninjaMonths        = 8
	ninjaWindow        = 6
	ninjaRatio         = 0.85
	streakDays         = 10
	premiumRatio       = 1.10
	feastParty         = 4
	feastPerPerson     = 15.0
	photoMonthShare    = 0.6
)

var bigMonthTotal = decimal.NewFromInt(500)

// Catalog is the ordered list of every badge.
var Catalog = []Achievement{
	{ID: "first-bite", Name: "First Bite", Description: "First restaurant bill", Icon: "restaurant", Check: FirstBite},
	{ID: "home-city-loyalist", Name: "Home City Loyalist", Description: "≥20 local bills in 90 days", Icon: "location_city", Check: HomeCityLoyalist},
	{ID: "globe-taster", Name: "Globe Taster", Description: "Bills in ≥3 countries", Icon: "public", Check: GlobeTaster},
	{ID: "weekend-warrior", Name: "Weekend Warrior", Description: "Bills on 6 consecutive weekends", Icon: "sports_esports", Check: WeekendWarrior},
	{ID: "budget-ninja", Name: "Budget Ninja", Description: "2 months avg. bill ≤ 6-mo avg -15%", Icon: "savings", Check: BudgetNinja},
	{ID: "consistency-streak", Name: "Consistency Streak", Description: "10+ consecutive days with a bill", Icon: "event_repeat", Check: ConsistencyStreak},
	{ID: "travel-premium-crusher", Name: "Travel Premium Crusher", Description: "Avg. travel bill within 10% of local", Icon: "flight_takeoff", Check: TravelPremiumCrusher},
	{ID: "family-feast", Name: "Family Feast", Description: "A bill for ≥4 people at ≤15€/person", Icon: "groups", Check: FamilyFeast},
	{ID: "five-hundred-month", Name: "€500 Month", Description: "Spend ≥€500 in a single month", Icon: "euro_symbol", Check: FiveHundredMonth},
	{ID: "photo-historian", Name: "Photo Historian", Description: "≥60% of bills have photos in a month", Icon: "photo_camera", Check: PhotoHistorian},
}

// Evaluate runs every check in the catalog.
func Evaluate(bills []core.Bill, opts Options) []Badge {
	out := make([]Badge, len(Catalog))
	for i, a := range Catalog {
		out[i] = Badge{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Icon:        a.Icon,
			Unlocked:    a.Check(bills, opts),
		}
	}
	return out
}

// Highlights returns up to n unlocked badges in catalog order.
func Highlights(badges []Badge, n int) []Badge {
	var out []Badge
	for _, b := range badges {
		if len(out) >= n {
			break
		}
		if b.Unlocked {
			out = append(out, b)
		}
	}
	return out
}

// Unlocked counts the unlocked badges.
func Unlocked(badges []Badge) int {
	n := 0
	for _, b := range badges {
		if b.Unlocked {
			n++
		}
	}
	return n
}

func FirstBite(bills []core.Bill, _ Options) bool {
	return len(bills) > 0
}

// HomeCityLoyalist looks for 20 local home-city bills whose dates span at
// most 90 days.
func HomeCityLoyalist(bills []core.Bill, opts Options) bool {
	var dates []core.Date
	for _, b := range bills {
		if b.SpendType == core.SpendLocal && b.City == opts.HomeCity && b.HasDate() {
			dates = append(dates, b.Date)
		}
	}
	if len(dates) < loyalistBills {
		return false
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j].Time) })
	for i := 0; i+loyalistBills-1 < len(dates); i++ {
		if dates[i+loyalistBills-1].DaysSince(dates[i]) <= loyalistWindowDays {
			return true
		}
	}
	return false
}

func GlobeTaster(bills []core.Bill, _ Options) bool {
	return len(insights.Countries(bills)) >= globeCountries
}

type isoWeek struct {
	year, week int
}

func (w isoWeek) less(o isoWeek) bool {
	if w.year != o.year {
		return w.year < o.year
	}
	return w.week < o.week
}

// follows reports whether w is the ISO week right after prev. Week 52 or 53
// rolling into week 1 of the next year counts.
func (w isoWeek) follows(prev isoWeek) bool {
	if w.year == prev.year {
		return w.week == prev.week+1
	}
	return w.year == prev.year+1 && w.week == 1 && prev.week >= 52
}

// WeekendWarrior looks for weekend bills in 6 consecutive ISO weeks.
func WeekendWarrior(bills []core.Bill, _ Options) bool {
	seen := map[isoWeek]struct{}{}
	var weeks []isoWeek
	for _, b := range bills {
		if !b.HasDate() || !b.Date.IsWeekend() {
			continue
		}
		y, wk := b.Date.ISOWeek()
		w := isoWeek{year: y, week: wk}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		weeks = append(weeks, w)
	}
	if len(weeks) < warriorWeeks {
		return false
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].less(weeks[j]) })

	run := 1
	for i := 1; i < len(weeks); i++ {
		if weeks[i].follows(weeks[i-1]) {
			run++
		} else {
			run = 1
		}
		if run >= warriorWeeks {
			return true
		}
	}
	return false
}

// BudgetNinja looks for two adjacent months whose average local bill is at
// most 85% of the bill-weighted average of the six months before them.
// It needs at least eight months of local bills.
func BudgetNinja(bills []core.Bill, _ Options) bool {
	months := insights.MonthlyTotals(insights.BySpendType(bills, core.SpendLocal))
	if len(months) < ninjaMonths {
		return false
	}
	for i := ninjaMonths - 1; i < len(months); i++ {
		var total float64
		var count int
		for _, m := range months[i-ninjaWindow-1 : i-1] {
			total += m.Average() * float64(m.Count)
			count += m.Count
		}
		if count == 0 {
			continue
		}
		target := total / float64(count) * ninjaRatio
		if months[i-1].Average() <= target && months[i].Average() <= target {
			return true
		}
	}
	return false
}

func ConsistencyStreak(bills []core.Bill, _ Options) bool {
	return insights.Streaks(bills).LongestStreak >= streakDays
}

// TravelPremiumCrusher compares overall averages: travel must be within 10%
// of local, and both kinds of bill must exist.
func TravelPremiumCrusher(bills []core.Bill, _ Options) bool {
	local := insights.BySpendType(bills, core.SpendLocal)
	travel := insights.BySpendType(bills, core.SpendTravel)
	if len(local) == 0 || len(travel) == 0 {
		return false
	}
	return insights.Mean(travel) <= insights.Mean(local)*premiumRatio
}

func FamilyFeast(bills []core.Bill, _ Options) bool {
	for _, b := range bills {
		size := b.PartySize()
		if size < feastParty {
			continue
		}
		if b.Cost()/float64(size) <= feastPerPerson {
			return true
		}
	}
	return false
}

func FiveHundredMonth(bills []core.Bill, _ Options) bool {
	for _, m := range insights.MonthlyTotals(bills) {
		if m.Sum().GreaterThanOrEqual(bigMonthTotal) {
			return true
		}
	}
	return false
}

func PhotoHistorian(bills []core.Bill, _ Options) bool {
	for _, m := range insights.MonthlyTotals(bills) {
		if m.AttachmentShare() >= photoMonthShare {
			return true
		}
	}
	return false
}
