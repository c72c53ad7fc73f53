package google

import (
	"fmt"
	"strings"

	"foodie/internal/core"
	"foodie/internal/source"
)

// idHeaders name the column that identifies a row, in order of preference.
var idHeaders = []string{"ID", "Record ID", "id"}

// parseRows turns a values matrix into rows keyed by the header row. Rows
// without an id column get a synthetic "<sheet>:<row>" id. Empty cells are
// left out, as the Airtable API does.
func parseRows(sheet string, values [][]interface{}) []core.Row {
	if len(values) == 0 {
		return nil
	}
	headers := toStrings(values[0])
	idCol := -1
	for _, h := range idHeaders {
		if idCol = indexOf(headers, h); idCol != -1 {
			break
		}
	}

	rows := make([]core.Row, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		cells := values[i]
		fields := make(map[string]any, len(headers))
		for col, name := range headers {
			if name == "" || col == idCol || col >= len(cells) {
				continue
			}
			v := cells[col]
			if s, ok := v.(string); ok {
				if s = strings.TrimSpace(s); s == "" {
					continue
				}
				v = s
			}
			fields[name] = v
		}
		if len(fields) == 0 {
			continue
		}
		id := strings.TrimSpace(safeGet(toStrings(cells), idCol))
		if id == "" {
			id = fmt.Sprintf("%s:%d", sheet, i+1)
		}
		rows = append(rows, core.Row{ID: id, Fields: fields})
	}
	return rows
}

// linkIDs splits a link cell ("rec1, rec2") into ids.
func linkIDs(v any) []string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasLinks(rows []core.Row, field string) bool {
	for _, r := range rows {
		if len(linkIDs(r.Field(field))) > 0 {
			return true
		}
	}
	return false
}

func joinDetails(rows, details []core.Row, field string) []core.Row {
	byID := make(map[string]core.Row, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}
	out := make([]core.Row, len(rows))
	for i, r := range rows {
		linked := []core.Row{}
		for _, id := range linkIDs(r.Field(field)) {
			if d, ok := byID[id]; ok {
				linked = append(linked, d)
			}
		}
		fields := make(map[string]any, len(r.Fields)+1)
		for k, v := range r.Fields {
			fields[k] = v
		}
		fields[source.DetailsField] = linked
		out[i] = core.Row{ID: r.ID, CreatedTime: r.CreatedTime, Fields: fields}
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, s := range arr {
		if strings.EqualFold(strings.TrimSpace(s), target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}
