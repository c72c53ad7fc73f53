// Package memory serves activity rows from memory, optionally seeded from a
// JSON file. It backs local development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"foodie/internal/core"
	"foodie/internal/source"
)

// Dataset is the file layout read by NewFromFile and written by the
// snapshot command.
type Dataset struct {
	Records     []core.Row `json:"records"`
	Restaurants []core.Row `json:"restaurants"`
}

type Store struct {
	mu   sync.RWMutex
	data Dataset
}

var _ source.Source = (*Store)(nil)

// New returns a store holding the given rows. When restaurants is nil the
// whole table doubles as the restaurant view.
func New(records, restaurants []core.Row) *Store {
	if restaurants == nil {
		restaurants = records
	}
	return &Store{data: Dataset{Records: records, Restaurants: restaurants}}
}

// NewFromFile loads a Dataset from path. A missing file yields a small
// built-in sample so the dashboard has something to show.
func NewFromFile(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(sampleRows(), nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return New(ds.Records, ds.Restaurants), nil
}

func (s *Store) ListRecords(_ context.Context) ([]core.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Row(nil), s.data.Records...), nil
}

func (s *Store) ListRestaurants(_ context.Context) ([]core.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Row(nil), s.data.Restaurants...), nil
}

// Replace swaps the stored rows.
func (s *Store) Replace(records, restaurants []core.Row) {
	if restaurants == nil {
		restaurants = records
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = Dataset{Records: records, Restaurants: restaurants}
}

func sampleRows() []core.Row {
	detail := func(id, name, city, country, coords string) core.Row {
		return core.Row{ID: id, Fields: map[string]any{
			"Nimetus": name, "Linn": city, "Riik": country, "Coordinates": coords,
		}}
	}
	return []core.Row{
		{ID: "recSample1", Fields: map[string]any{
			"Kuupäev": "2024-03-01", "Kokku": 24.5, "Spend Type": "Local", "Toit": "Ramen", "Emoji": "🍜",
			source.DetailsField: []core.Row{detail("restSample1", "Noodle Bar", "Tallinn", "Estonia", "59.437,24.745")},
		}},
		{ID: "recSample2", Fields: map[string]any{
			"Kuupäev": "2024-03-09", "Kokku": 86, "Spend Type": "Travel", "Toit": "Pizza", "Emoji": "🍕", "Pere": []any{"Anna", "Mart"},
			source.DetailsField: []core.Row{detail("restSample2", "Da Enzo", "Rome", "Italy", "41.889,12.470")},
		}},
		{ID: "recSample3", Fields: map[string]any{
			"Kuupäev": "2024-04-13", "Kokku": 41.2, "Spend Type": "Local", "Toit": "Burger", "Emoji": "🍔",
			source.DetailsField: []core.Row{detail("restSample3", "Grill", "Tallinn", "Estonia", "59.433,24.760")},
		}},
	}
}
