package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mvbarros/estoque/internal/domain/models"
)

// Reconciler re-derives every balance from the transaction ledger and repairs
// materialized rows that drifted, e.g. after a balance write failed with the
// transaction already durably appended. The ledger is the source of truth.
type Reconciler struct {
	ledger *LedgerStore
	table  *MaterializedStore
	logger *zap.Logger
	now    func() time.Time
}

// NewReconciler constructs a repair pass over the balance table.
func NewReconciler(ledgerStore *LedgerStore, table *MaterializedStore, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		ledger: ledgerStore,
		table:  table,
		logger: logger,
		now:    time.Now,
	}
}

// Run compares ledger-derived sums against the balance table and rewrites
// every row whose difference exceeds Epsilon, creating missing rows.
func (r *Reconciler) Run(ctx context.Context) (models.ReconciliationReport, error) {
	report := models.ReconciliationReport{Timestamp: r.now().UTC(), CreatedAt: r.now().UTC()}

	r.ledger.Invalidate("")
	sums, err := r.ledger.Sums(ctx)
	if err != nil {
		return report, fmt.Errorf("derive ledger sums: %w", err)
	}

	r.table.Invalidate("")
	recorded, err := r.table.Rows(ctx)
	if err != nil {
		return report, fmt.Errorf("read balance table: %w", err)
	}

	checked := make(map[string]struct{}, len(sums)+len(recorded))
	for id := range sums {
		checked[id] = struct{}{}
	}
	for id := range recorded {
		checked[id] = struct{}{}
	}
	report.ItemsChecked = len(checked)

	for id := range checked {
		derived := sums[id]
		current, exists := recorded[id]
		if exists && math.Abs(current.Current-derived) < Epsilon {
			continue
		}
		if !exists && math.Abs(derived) < Epsilon {
			continue
		}

		if err := r.repair(ctx, id, derived, exists); err != nil {
			return report, err
		}

		report.Corrections = append(report.Corrections, models.BalanceCorrection{
			ItemID:   id,
			Recorded: current.Current,
			Derived:  derived,
		})
		r.logger.Info("balance repaired",
			zap.String("item_id", id),
			zap.Float64("recorded", current.Current),
			zap.Float64("derived", derived))
	}

	r.table.Invalidate("")
	return report, nil
}

func (r *Reconciler) repair(ctx context.Context, itemID string, derived float64, exists bool) error {
	if !exists {
		current, err := r.table.ApplyDelta(ctx, itemID, derived)
		if err != nil {
			return err
		}
		if math.Abs(current-derived) > Epsilon {
			return fmt.Errorf("repair of %s landed on %v, wanted %v", itemID, current, derived)
		}
		return nil
	}

	// Rewrite via delta so the row update path is shared with ApplyDelta.
	recorded, err := r.table.GetBalance(ctx, itemID)
	if err != nil {
		return err
	}
	_, err = r.table.ApplyDelta(ctx, itemID, derived-recorded)
	return err
}
