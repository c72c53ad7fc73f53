package dashboard

import (
	"math"
	"sort"
	"strings"

	"foodie/internal/core"
)

// Activity is one entry of the restaurant list.
type Activity struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Restaurant  string            `json:"restaurantName"`
	City        string            `json:"city"`
	Country     string            `json:"country"`
	Spend       float64           `json:"spend"`
	Date        string            `json:"date,omitempty"`
	Emoji       string            `json:"emoji,omitempty"`
	PhotoURL    string            `json:"photoUrl,omitempty"`
	Photos      []string          `json:"photos,omitempty"`
	Coordinates *core.Coordinates `json:"coordinates,omitempty"`

	date core.Date
}

// Activities converts bills into list entries, keeping their order.
func Activities(bills []core.Bill) []Activity {
	out := make([]Activity, len(bills))
	for i, b := range bills {
		a := Activity{
			ID:          b.ID,
			Name:        b.Name,
			Restaurant:  orNA(b.Restaurant),
			City:        orNA(b.City),
			Country:     orNA(b.Country),
			Spend:       core.Round2(b.Cost()),
			Emoji:       b.Emoji,
			PhotoURL:    b.PhotoURL,
			Coordinates: b.Coordinates,
			date:        b.Date,
		}
		if b.HasDate() {
			a.Date = b.Date.Key()
		}
		for _, att := range b.Attachments {
			if att.URL != "" {
				a.Photos = append(a.Photos, att.URL)
			}
		}
		out[i] = a
	}
	return out
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// SortKey orders the restaurant list.
type SortKey string

const (
	SortDate  SortKey = "date"
	SortSpend SortKey = "spend"
)

// ParseSort maps a query value to a sort key. "avg-spend" is accepted for
// the spend order; anything else falls back to date.
func ParseSort(s string) SortKey {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spend", "avg-spend":
		return SortSpend
	default:
		return SortDate
	}
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListState is the explicit state of the restaurant list: search text, sort
// order and pagination.
type ListState struct {
	Query    string  `json:"query"`
	Sort     SortKey `json:"sort"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

// NewListState returns the initial state: no filter, newest first, page 1.
func NewListState() ListState {
	return ListState{Sort: SortDate, Page: 1, PageSize: DefaultPageSize}
}

// Normalized clamps the state into its valid range.
func (s ListState) Normalized() ListState {
	s.Query = strings.TrimSpace(s.Query)
	if s.Sort != SortSpend {
		s.Sort = SortDate
	}
	if s.Page < 1 {
		s.Page = 1
	}
	switch {
	case s.PageSize <= 0:
		s.PageSize = DefaultPageSize
	case s.PageSize > MaxPageSize:
		s.PageSize = MaxPageSize
	}
	return s
}

// Action is a state transition of the restaurant list.
type Action interface {
	apply(ListState) ListState
}

type (
	// SetQuery changes the search text and returns to the first page.
	SetQuery struct{ Query string }
	// SetSort changes the order and returns to the first page.
	SetSort    struct{ Sort SortKey }
	GoToPage   struct{ Page int }
	NextPage   struct{}
	PrevPage   struct{}
	SetPerPage struct{ Size int }
)

func (a SetQuery) apply(s ListState) ListState {
	s.Query, s.Page = a.Query, 1
	return s
}

func (a SetSort) apply(s ListState) ListState {
	s.Sort, s.Page = a.Sort, 1
	return s
}

func (a GoToPage) apply(s ListState) ListState {
	s.Page = a.Page
	return s
}

func (NextPage) apply(s ListState) ListState {
	s.Page++
	return s
}

func (PrevPage) apply(s ListState) ListState {
	s.Page--
	return s
}

func (a SetPerPage) apply(s ListState) ListState {
	s.PageSize, s.Page = a.Size, 1
	return s
}

// Update applies an action and returns the new state. The input state is
// not modified.
func Update(s ListState, a Action) ListState {
	if a == nil {
		return s.Normalized()
	}
	return a.apply(s.Normalized()).Normalized()
}

// Page is one rendered page of the restaurant list.
type Page struct {
	State      ListState  `json:"state"`
	Items      []Activity `json:"items"`
	Total      int        `json:"total"`
	TotalPages int        `json:"totalPages"`
}

// Apply filters, sorts and paginates activities. A page past the end is
// clamped to the last page.
func Apply(activities []Activity, state ListState) Page {
	state = state.Normalized()
	q := strings.ToLower(state.Query)

	filtered := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if q == "" || matches(a, q) {
			filtered = append(filtered, a)
		}
	}

	switch state.Sort {
	case SortSpend:
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Spend > filtered[j].Spend })
	default:
		sort.SliceStable(filtered, func(i, j int) bool {
			di, dj := filtered[i].date, filtered[j].date
			if di.IsZero() != dj.IsZero() {
				return dj.IsZero()
			}
			return di.After(dj.Time)
		})
	}

	pages := int(math.Ceil(float64(len(filtered)) / float64(state.PageSize)))
	if pages < 1 {
		pages = 1
	}
	if state.Page > pages {
		state.Page = pages
	}
	start := (state.Page - 1) * state.PageSize
	end := min(start+state.PageSize, len(filtered))

	return Page{
		State:      state,
		Items:      filtered[start:end],
		Total:      len(filtered),
		TotalPages: pages,
	}
}

func matches(a Activity, q string) bool {
	for _, field := range []string{a.Name, a.Restaurant, a.City, a.Country} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Marker colour tiers.
const (
	MarkerCheap     = "#10b981"
	MarkerModerate  = "#f59e0b"
	MarkerExpensive = "#ef4444"
)

type (
	Marker struct {
		ID         string  `json:"id"`
		Lat        float64 `json:"lat"`
		Lng        float64 `json:"lng"`
		Color      string  `json:"color"`
		Title      string  `json:"title"`
		Restaurant string  `json:"restaurantName"`
		Spend      float64 `json:"spend"`
		Date       string  `json:"date,omitempty"`
	}

	// Bounds is the box enclosing every marker, for fit-to-bounds.
	Bounds struct {
		MinLat float64 `json:"minLat"`
		MinLng float64 `json:"minLng"`
		MaxLat float64 `json:"maxLat"`
		MaxLng float64 `json:"maxLng"`
	}

	MarkerSet struct {
		Markers []Marker `json:"markers"`
		Bounds  *Bounds  `json:"bounds,omitempty"`
	}
)

// MarkerColor picks the colour tier for a bill amount.
func MarkerColor(amount float64) string {
	switch {
	case amount > 75:
		return MarkerExpensive
	case amount > 35:
		return MarkerModerate
	default:
		return MarkerCheap
	}
}

// Markers places every activity with valid coordinates on the map.
func Markers(activities []Activity) MarkerSet {
	set := MarkerSet{Markers: []Marker{}}
	for _, a := range activities {
		c := a.Coordinates
		if c == nil || !validCoordinates(*c) {
			continue
		}
		emoji := a.Emoji
		if emoji == "" {
			emoji = "🍽️"
		}
		name := a.Name
		if name == "" {
			name = "Dish"
		}
		set.Markers = append(set.Markers, Marker{
			ID:         a.ID,
			Lat:        c.Lat,
			Lng:        c.Lng,
			Color:      MarkerColor(a.Spend),
			Title:      emoji + " " + name,
			Restaurant: a.Restaurant,
			Spend:      a.Spend,
			Date:       a.Date,
		})
		if set.Bounds == nil {
			set.Bounds = &Bounds{MinLat: c.Lat, MaxLat: c.Lat, MinLng: c.Lng, MaxLng: c.Lng}
			continue
		}
		set.Bounds.MinLat = math.Min(set.Bounds.MinLat, c.Lat)
		set.Bounds.MaxLat = math.Max(set.Bounds.MaxLat, c.Lat)
		set.Bounds.MinLng = math.Min(set.Bounds.MinLng, c.Lng)
		set.Bounds.MaxLng = math.Max(set.Bounds.MaxLng, c.Lng)
	}
	return set
}

func validCoordinates(c core.Coordinates) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}
