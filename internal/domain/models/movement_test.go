package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveQuantity(t *testing.T) {
	cases := []struct {
		name          string
		action        ActionKind
		quantity      float64
		adjustSign    int
		wantSign      int
		wantEffective float64
	}{
		{"in adds", ActionIn, 10, 0, 1, 10},
		{"out subtracts", ActionOut, 3, 0, -1, -3},
		{"adjust positive", ActionAdjust, 7, 1, 1, 7},
		{"adjust negative", ActionAdjust, 7, -1, -1, -7},
		{"adjust zero is a no-op", ActionAdjust, 0, -1, -1, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sign, effective := EffectiveQuantity(tc.action, tc.quantity, tc.adjustSign)
			assert.Equal(t, tc.wantSign, sign)
			assert.Equal(t, tc.wantEffective, effective)

			// The stored sign always matches the sign of the effective quantity.
			if effective != 0 {
				if effective > 0 {
					assert.Equal(t, 1, sign)
				} else {
					assert.Equal(t, -1, sign)
				}
			}
		})
	}
}

func TestParseActionKind(t *testing.T) {
	for raw, want := range map[string]ActionKind{
		"IN":     ActionIn,
		"in":     ActionIn,
		" out ":  ActionOut,
		"Adjust": ActionAdjust,
	} {
		got, err := ParseActionKind(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseActionKind("TRANSFER")
	assert.Error(t, err)
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "pr001", NormalizeID("pr001"))
	assert.Equal(t, "pr001", NormalizeID(" PR001 "))
	assert.Equal(t, "pr001", NormalizeID("PR001"))
	assert.Equal(t, "", NormalizeID("   "))
}
