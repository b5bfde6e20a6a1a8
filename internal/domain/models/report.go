package models

import "time"

// BalanceCorrection records one materialized balance that drifted from the
// ledger-derived value and was repaired.
type BalanceCorrection struct {
	ItemID   string  `bson:"item_id" json:"item_id"`
	Recorded float64 `bson:"recorded" json:"recorded"`
	Derived  float64 `bson:"derived" json:"derived"`
}

// ReconciliationReport summarizes one repair pass over the balance table.
type ReconciliationReport struct {
	Timestamp    time.Time           `bson:"timestamp" json:"timestamp"`
	ItemsChecked int                 `bson:"items_checked" json:"items_checked"`
	Corrections  []BalanceCorrection `bson:"corrections" json:"corrections"`
	CreatedAt    time.Time           `bson:"created_at" json:"created_at"`
}
