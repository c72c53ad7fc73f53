package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SpendUnknown SpendType = iota
	SpendLocal
	SpendTravel
)

type (
	// SpendType classifies a bill as home-city spending or travel spending.
	SpendType int

	// Date is a civil calendar date stored at UTC midnight. The zero value means "no date".
	Date struct {
		time.Time
	}

	// YearMonth is a month key ordered as a (year, month) tuple.
	YearMonth struct {
		Year  int
		Month time.Month
	}

	// Row is a provider-neutral tabular record. Its JSON shape matches the
	// upstream record so the proxy can pass rows through untouched.
	Row struct {
		ID          string         `json:"id"`
		CreatedTime string         `json:"createdTime,omitempty"`
		Fields      map[string]any `json:"fields"`
	}

	Attachment struct {
		URL          string `json:"url"`
		ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	}

	Coordinates struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}

	// Bill is one restaurant expense, flattened from a Row.
	Bill struct {
		ID          string
		Date        Date
		Month       YearMonth
		Amount      decimal.Decimal
		SpendType   SpendType
		City        string
		Country     string
		Party       []string
		Attachments []Attachment
		CreatedAt   time.Time // zero when the bill has no capture timestamp

		Name        string
		Restaurant  string
		Emoji       string
		Coordinates *Coordinates
		PhotoURL    string
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidYearMonth = errors.New("invalid year-month")
)

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate accepts "2006-01-02" and full RFC 3339 timestamps (date part only).
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysSince returns the number of calendar days from other to d.
func (d Date) DaysSince(other Date) int {
	return int(d.Sub(other.Time).Hours() / 24)
}

// Key returns the ISO date, used for grouping by day.
func (d Date) Key() string {
	return d.Format("2006-01-02")
}

// YearMonth returns the month the date falls in.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

// IsWeekend reports whether the date is a Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// ParseYearMonth accepts "YY-MM" (the sheet's month column) and "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidYearMonth, s)
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidYearMonth, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidYearMonth, s)
	}
	switch len(parts[0]) {
	case 2:
		y += 2000
	case 4:
	default:
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidYearMonth, s)
	}
	return YearMonth{Year: y, Month: time.Month(m)}, nil
}

func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

// Less orders month keys chronologically.
func (ym YearMonth) Less(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// String renders the key as "YY-MM", the label used by the charts.
func (ym YearMonth) String() string {
	return fmt.Sprintf("%02d-%02d", ym.Year%100, int(ym.Month))
}

func (st SpendType) String() string {
	switch st {
	case SpendLocal:
		return "Local"
	case SpendTravel:
		return "Travel"
	default:
		return "Unknown"
	}
}

// HasDate reports whether the bill can take part in date-keyed aggregates.
func (b Bill) HasDate() bool {
	return !b.Date.IsZero()
}

// Cost returns the amount as a float for statistics.
func (b Bill) Cost() float64 {
	return b.Amount.InexactFloat64()
}

// PartySize is the number of participants recorded on the bill.
func (b Bill) PartySize() int {
	return len(b.Party)
}

// HasAttachment reports whether at least one photo is attached.
func (b Bill) HasAttachment() bool {
	return len(b.Attachments) > 0
}

// Field returns the raw field value, or nil.
func (r Row) Field(name string) any {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[name]
}
