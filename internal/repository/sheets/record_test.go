package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordStringTrimsAndDefaults(t *testing.T) {
	rec := NewRecord([]string{"item_id", "name"}, []interface{}{"  PR001 ", "Parafuso"}, 2)

	assert.Equal(t, "PR001", rec.String("item_id"))
	assert.Equal(t, "Parafuso", rec.String("NAME"))
	assert.Equal(t, "", rec.String("missing"))
	assert.False(t, rec.Has("missing"))
}

func TestRecordFloatHandlesLocaleAndTypes(t *testing.T) {
	rec := NewRecord(
		[]string{"a", "b", "c", "d", "e"},
		[]interface{}{"12,5", "1 250,75", 3.0, "abc", ""},
		2,
	)

	v, ok := rec.Float("a")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	v, ok = rec.Float("b")
	assert.True(t, ok)
	assert.Equal(t, 1250.75, v)

	v, ok = rec.Float("c")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = rec.Float("d")
	assert.False(t, ok)

	assert.Equal(t, 7.0, rec.FloatOr("e", 7))
}

func TestRecordShortRowTreatedAsAbsent(t *testing.T) {
	// The API omits trailing empty cells, so rows can be shorter than the header.
	rec := NewRecord([]string{"item_id", "current_balance"}, []interface{}{"pr001"}, 5)

	assert.Equal(t, "pr001", rec.String("item_id"))
	assert.Equal(t, 0.0, rec.FloatOr("current_balance", 0))
	assert.Equal(t, 5, rec.Row)
}

func TestRecordBool(t *testing.T) {
	rec := NewRecord(
		[]string{"a", "b", "c", "d", "e"},
		[]interface{}{"TRUE", "sim", "1", "no", "0"},
		2,
	)

	assert.True(t, rec.Bool("a"))
	assert.True(t, rec.Bool("b"))
	assert.True(t, rec.Bool("c"))
	assert.False(t, rec.Bool("d"))
	assert.False(t, rec.Bool("e"))
	assert.False(t, rec.Bool("missing"))
}

func TestRecordTime(t *testing.T) {
	rec := NewRecord([]string{"ts", "day"}, []interface{}{"2026-03-01T10:30:00Z", "2026-03-01"}, 2)

	ts, ok := rec.Time("ts")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), ts)

	day, ok := rec.Time("day")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), day)

	_, ok = rec.Time("missing")
	assert.False(t, ok)
}

func TestOrderByHeaderAlignsToCurrentHeader(t *testing.T) {
	header := []string{"trans_id", "timestamp", "item_id", "note"}
	values := orderByHeader(header, map[string]interface{}{
		"item_id":  "pr001",
		"trans_id": "t-1",
		"ignored":  "x",
	})

	assert.Equal(t, []interface{}{"t-1", "", "pr001", ""}, values)
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(0))
	assert.Equal(t, "B", columnLetter(1))
	assert.Equal(t, "Z", columnLetter(25))
	assert.Equal(t, "AA", columnLetter(26))
	assert.Equal(t, "AB", columnLetter(27))
}
