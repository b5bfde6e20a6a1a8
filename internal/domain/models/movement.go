package models

import (
	"fmt"
	"strings"
	"time"
)

// ActionKind enumerates the supported stock movement categories.
type ActionKind string

const (
	ActionIn     ActionKind = "IN"
	ActionOut    ActionKind = "OUT"
	ActionAdjust ActionKind = "ADJUST"
)

// ParseActionKind derives an ActionKind from user input.
func ParseActionKind(value string) (ActionKind, error) {
	switch ActionKind(strings.ToUpper(strings.TrimSpace(value))) {
	case ActionIn:
		return ActionIn, nil
	case ActionOut:
		return ActionOut, nil
	case ActionAdjust:
		return ActionAdjust, nil
	default:
		return "", fmt.Errorf("unknown action kind %q", value)
	}
}

// EffectiveQuantity applies the quantity-delta rule: an IN adds the entered
// quantity, an OUT subtracts it, and an ADJUST carries the sign chosen by the
// operator. The adjustSign argument is only consulted for ADJUST.
func EffectiveQuantity(action ActionKind, quantity float64, adjustSign int) (sign int, effective float64) {
	switch action {
	case ActionOut:
		return -1, -quantity
	case ActionAdjust:
		if adjustSign < 0 {
			return -1, -quantity
		}
		return 1, quantity
	default:
		return 1, quantity
	}
}

// Transaction is one append-only ledger row. Rows are never mutated or
// deleted after being written; they are the audit trail.
type Transaction struct {
	ID                string
	Timestamp         time.Time
	ItemID            string
	Action            ActionKind
	Sign              int
	Quantity          float64
	EffectiveQuantity float64
	UserID            string
	Note              string
}

// Count is the write-only audit record of one physical stock count. A count
// never drives the balance directly; only the derived ADJUST transaction does.
type Count struct {
	ID          string
	Timestamp   time.Time
	ItemID      string
	Theoretical float64
	Counted     float64
	Difference  float64
	UserID      string
}

// Balance pairs an item with its current stock level.
type Balance struct {
	ItemID  string
	Current float64
}
