package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// UnknownAsTravel files any spend-type label other than "Local" and "Travel" under Travel.
	UnknownAsTravel UnknownSpendPolicy = "travel"
	// UnknownIgnored keeps unrecognized labels out of both spend-type buckets.
	UnknownIgnored UnknownSpendPolicy = "ignore"
)

// localTimestamp is an ISO timestamp without a zone, read in the normalizer's
// location.
const localTimestamp = "2006-01-02T15:04:05"

// UnknownSpendPolicy decides where bills with an unrecognized spend-type label go.
type UnknownSpendPolicy string

// IsValid returns true if the policy is one of the known values
func (p UnknownSpendPolicy) IsValid() bool {
	return p == UnknownAsTravel || p == UnknownIgnored
}

// FieldMap names the columns of the activity table.
type FieldMap struct {
	Date        string
	Amount      string
	SpendType   string
	City        string
	Country     string
	Party       string
	Attachments string
	CreatedAt   string
	Month       string
	Name        string
	Emoji       string
	Details     string

	// Columns of the joined restaurant records.
	DetailName        string
	DetailCity        string
	DetailCountry     string
	DetailCoordinates string
	DetailPhoto       string
}

// DefaultFieldMap returns the column names used by the activity base.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		Date:        "Kuupäev",
		Amount:      "Kokku",
		SpendType:   "Spend Type",
		City:        "Linn",
		Country:     "Riik",
		Party:       "Pere",
		Attachments: "Attachments",
		CreatedAt:   "created_exif",
		Month:       "Kuu",
		Name:        "Toit",
		Emoji:       "Emoji",
		Details:     "ToidudDetails",

		DetailName:        "Nimetus",
		DetailCity:        "Linn",
		DetailCountry:     "Riik",
		DetailCoordinates: "Coordinates",
		DetailPhoto:       "Foto",
	}
}

// Normalizer maps raw rows into bills.
type Normalizer struct {
	Fields       FieldMap
	Location     *time.Location
	UnknownSpend UnknownSpendPolicy
}

// NewNormalizer returns a normalizer with the default field map.
func NewNormalizer(loc *time.Location, policy UnknownSpendPolicy) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if !policy.IsValid() {
		policy = UnknownAsTravel
	}
	return &Normalizer{Fields: DefaultFieldMap(), Location: loc, UnknownSpend: policy}
}

// Normalize converts every row. Rows never fail: missing or malformed
// cells become zero values.
func (n *Normalizer) Normalize(rows []Row) []Bill {
	out := make([]Bill, 0, len(rows))
	for _, r := range rows {
		out = append(out, n.NormalizeRow(r))
	}
	return out
}

// NormalizeRow converts one row into a bill.
func (n *Normalizer) NormalizeRow(r Row) Bill {
	f := n.Fields
	b := Bill{
		ID:        r.ID,
		SpendType: n.spendType(cellString(r.Field(f.SpendType))),
		City:      cellString(r.Field(f.City)),
		Country:   cellString(r.Field(f.Country)),
		Party:     cellStrings(r.Field(f.Party)),
		Name:      cellString(r.Field(f.Name)),
		Emoji:     cellString(r.Field(f.Emoji)),
	}

	if amt, err := ParseAmount(r.Field(f.Amount)); err == nil && amt.IsPositive() {
		b.Amount = amt
	} else {
		b.Amount = decimal.Zero
	}

	if d, err := ParseDate(cellString(r.Field(f.Date))); err == nil {
		b.Date = d
	}
	if ym, err := ParseYearMonth(cellString(r.Field(f.Month))); err == nil {
		b.Month = ym
	} else if b.HasDate() {
		b.Month = b.Date.YearMonth()
	}

	if s := cellString(r.Field(f.CreatedAt)); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			b.CreatedAt = t.In(n.Location)
		} else if t, err := time.ParseInLocation(localTimestamp, s, n.Location); err == nil {
			b.CreatedAt = t
		}
	}

	b.Attachments = cellAttachments(r.Field(f.Attachments))

	if detail, ok := firstDetail(r.Field(f.Details)); ok {
		b.Restaurant = cellString(detail[f.DetailName])
		if b.City == "" {
			b.City = cellString(detail[f.DetailCity])
		}
		if b.Country == "" {
			b.Country = cellString(detail[f.DetailCountry])
		}
		if c, err := ParseCoordinates(cellString(detail[f.DetailCoordinates])); err == nil {
			b.Coordinates = &c
		}
		if photos := cellAttachments(detail[f.DetailPhoto]); len(photos) > 0 {
			b.PhotoURL = photos[0].ThumbnailURL
			if b.PhotoURL == "" {
				b.PhotoURL = photos[0].URL
			}
		}
	}
	return b
}

func (n *Normalizer) spendType(label string) SpendType {
	switch label {
	case "Local":
		return SpendLocal
	case "Travel":
		return SpendTravel
	}
	if n.UnknownSpend == UnknownIgnored {
		return SpendUnknown
	}
	return SpendTravel
}

// ParseCoordinates parses a "lat,lng" cell.
func ParseCoordinates(s string) (Coordinates, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coordinates{}, fmt.Errorf("invalid coordinates %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("invalid latitude %q: %w", parts[0], err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("invalid longitude %q: %w", parts[1], err)
	}
	return Coordinates{Lat: lat, Lng: lng}, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []any:
		// Lookup fields arrive as single-element arrays.
		if len(x) > 0 {
			return cellString(x[0])
		}
		return ""
	case []string:
		if len(x) > 0 {
			return strings.TrimSpace(x[0])
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func cellStrings(v any) []string {
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...)
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s := cellString(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		// Spreadsheet backends store linked ids as a comma-separated cell.
		var out []string
		for _, p := range strings.Split(x, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}

func cellAttachments(v any) []Attachment {
	var out []Attachment
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			switch a := e.(type) {
			case map[string]any:
				att := Attachment{URL: cellString(a["url"])}
				if thumbs, ok := a["thumbnails"].(map[string]any); ok {
					if large, ok := thumbs["large"].(map[string]any); ok {
						att.ThumbnailURL = cellString(large["url"])
					}
				}
				out = append(out, att)
			case string:
				if s := strings.TrimSpace(a); s != "" {
					out = append(out, Attachment{URL: s})
				}
			}
		}
	case []Attachment:
		out = append(out, x...)
	case string:
		for _, p := range strings.Split(x, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, Attachment{URL: p})
			}
		}
	}
	return out
}

// firstDetail returns the fields of the first joined detail record. Details
// are embedded either as rows (in-process join) or as decoded JSON objects.
func firstDetail(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case []Row:
		if len(x) > 0 && x[0].Fields != nil {
			return x[0].Fields, true
		}
	case []any:
		if len(x) == 0 {
			return nil, false
		}
		switch d := x[0].(type) {
		case Row:
			return d.Fields, d.Fields != nil
		case map[string]any:
			if fields, ok := d["fields"].(map[string]any); ok {
				return fields, true
			}
		}
	}
	return nil, false
}
