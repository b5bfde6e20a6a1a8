package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one header-keyed spreadsheet row. All coercion of the
// heterogeneous cell values the Sheets API returns (numeric-looking strings,
// comma decimal separators, boolean-ish flags) happens here; nothing outside
// this package sees raw cells.
type Record struct {
	// Row is the 1-based sheet row this record was read from, usable as a
	// coordinate for cell-level updates.
	Row int

	columns map[string]int
	cells   []interface{}
}

// NewRecord builds a record from a header row and the matching cell slice.
// Header names are matched case-insensitively with surrounding whitespace
// trimmed.
func NewRecord(header []string, cells []interface{}, row int) Record {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := columns[key]; !dup {
			columns[key] = i
		}
	}
	return Record{Row: row, columns: columns, cells: cells}
}

// Has reports whether the column exists and holds a non-empty value.
func (r Record) Has(column string) bool {
	return r.String(column) != ""
}

// String returns the trimmed cell value, or "" when the column is absent.
func (r Record) String(column string) string {
	idx, ok := r.columns[strings.ToLower(strings.TrimSpace(column))]
	if !ok || idx >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(toString(r.cells[idx]))
}

// Float parses the cell as a number. The second return is false when the
// column is absent, empty, or not numeric.
func (r Record) Float(column string) (float64, bool) {
	raw := r.String(column)
	if raw == "" {
		return 0, false
	}
	value, err := parseNumber(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

// FloatOr parses the cell as a number, falling back to def when it cannot.
func (r Record) FloatOr(column string, def float64) float64 {
	if value, ok := r.Float(column); ok {
		return value
	}
	return def
}

// Int parses the cell as an integer, truncating numeric cells.
func (r Record) Int(column string) (int, bool) {
	value, ok := r.Float(column)
	if !ok {
		return 0, false
	}
	return int(value), true
}

// Bool interprets boolean-ish cells. Recognized true spellings are "true",
// "yes", "sim", "1", "x"; everything else, including absence, is false.
func (r Record) Bool(column string) bool {
	switch strings.ToLower(r.String(column)) {
	case "true", "yes", "sim", "1", "x":
		return true
	default:
		return false
	}
}

// Time parses the cell as a timestamp, accepting RFC 3339 and plain dates.
func (r Record) Time(column string) (time.Time, bool) {
	raw := r.String(column)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func toString(cell interface{}) string {
	switch v := cell.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// parseNumber tolerates spreadsheet number formatting: thousands spaces and a
// comma used as the decimal separator, as long as no dot is also present.
func parseNumber(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(raw, " ", "")
	if strings.Contains(cleaned, ",") && !strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	return strconv.ParseFloat(cleaned, 64)
}
