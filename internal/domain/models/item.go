package models

import "strings"

// Item is the immutable reference record for one physical, QR-labelled asset.
// Items are created and edited directly in the spreadsheet, never by this app.
type Item struct {
	ID          string
	Name        string
	Unit        string
	Location    string
	Category    string
	MinStock    float64
	TargetStock float64
	Active      bool
}

// User is a reference record for an operator allowed to record movements.
// The PIN is a shared secret compared verbatim; the sheet is the source of truth.
type User struct {
	ID     string
	Name   string
	PIN    string
	Active bool
	Role   string
}

// NormalizeID canonicalizes an item or user identifier for lookups. The sheet
// data is hand-maintained, so keys arrive with stray whitespace and mixed case.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
