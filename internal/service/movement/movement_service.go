// Package movement orchestrates one stock movement: validate the request,
// compute the signed delta, append the transaction row, update the balance
// store, and (for physical counts) append the count audit row.
package movement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvbarros/estoque/internal/domain/models"
	repo "github.com/mvbarros/estoque/internal/repository/sheets"
	"github.com/mvbarros/estoque/internal/service/catalog"
	"github.com/mvbarros/estoque/internal/service/ledger"
	"github.com/mvbarros/estoque/pkg/clients/alerts"
)

// ErrQuantityNotPositive indicates an IN or OUT with quantity <= 0.
var ErrQuantityNotPositive = errors.New("quantity must be positive")

// ErrBalanceOutOfSync indicates the transaction row was durably appended but
// the materialized balance write failed. The ledger holds the truth; the
// scheduled repair pass recovers the balance row.
var ErrBalanceOutOfSync = errors.New("transaction recorded but balance not updated")

// NegativeBalanceError signals that an unconfirmed OUT would drive the
// balance negative. Negative balances are allowed once confirmed; this is a
// soft guard, not a hard constraint.
type NegativeBalanceError struct {
	Projected float64
}

func (e *NegativeBalanceError) Error() string {
	return fmt.Sprintf("movement would drive balance negative (projected %v), confirmation required", e.Projected)
}

// Request describes one movement to record.
type Request struct {
	ItemID          string
	Action          models.ActionKind
	Quantity        float64
	AdjustSign      int
	Note            string
	UserID          string
	ConfirmNegative bool
}

// Result reports a recorded movement.
type Result struct {
	Item        models.Item
	Transaction models.Transaction
	NewBalance  float64
}

// CountResult reports a reconciled physical count. Adjustment is nil when the
// count matched the theoretical balance and the count is audit-only.
type CountResult struct {
	Item       models.Item
	Count      models.Count
	Adjustment *models.Transaction
	NewBalance float64
}

// Service implements the movement recorder.
type Service struct {
	catalog           *catalog.Service
	store             ledger.BalanceStore
	repo              repo.Repository
	alerts            *alerts.Client
	transactionsSheet string
	countsSheet       string
	logger            *zap.Logger
	now               func() time.Time
	newID             func() string
}

// NewService constructs a movement recorder.
func NewService(catalogSvc *catalog.Service, store ledger.BalanceStore, repository repo.Repository, alertsClient *alerts.Client, transactionsSheet, countsSheet string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog:           catalogSvc,
		store:             store,
		repo:              repository,
		alerts:            alertsClient,
		transactionsSheet: transactionsSheet,
		countsSheet:       countsSheet,
		logger:            logger,
		now:               time.Now,
		newID:             func() string { return uuid.NewString() },
	}
}

// Record validates and persists one IN, OUT or ADJUST movement.
func (s *Service) Record(ctx context.Context, req Request) (Result, error) {
	item, err := s.catalog.FindItem(ctx, req.ItemID)
	if err != nil {
		return Result{}, err
	}

	switch req.Action {
	case models.ActionIn, models.ActionOut:
		if req.Quantity <= 0 {
			return Result{}, fmt.Errorf("%w: got %v for %s", ErrQuantityNotPositive, req.Quantity, req.Action)
		}
	case models.ActionAdjust:
		if req.Quantity < 0 {
			return Result{}, fmt.Errorf("%w: adjustments carry their sign separately", ErrQuantityNotPositive)
		}
	default:
		return Result{}, fmt.Errorf("unknown action kind %q", req.Action)
	}

	sign, effective := models.EffectiveQuantity(req.Action, req.Quantity, req.AdjustSign)

	if req.Action == models.ActionOut && !req.ConfirmNegative {
		current, err := s.store.GetBalance(ctx, item.ID)
		if err != nil {
			return Result{}, err
		}
		if projected := current + effective; projected < 0 {
			return Result{}, &NegativeBalanceError{Projected: projected}
		}
	}

	txn := models.Transaction{
		ID:                s.newID(),
		Timestamp:         s.now(),
		ItemID:            item.ID,
		Action:            req.Action,
		Sign:              sign,
		Quantity:          req.Quantity,
		EffectiveQuantity: effective,
		UserID:            req.UserID,
		Note:              req.Note,
	}

	newBalance, err := s.persist(ctx, item, txn)
	if err != nil {
		return Result{Item: item, Transaction: txn}, err
	}

	return Result{Item: item, Transaction: txn, NewBalance: newBalance}, nil
}

// RecordCount reconciles a physical count against the theoretical balance.
// The count row is always appended as audit; a compensating ADJUST
// transaction is emitted only when the difference exceeds the noise floor.
func (s *Service) RecordCount(ctx context.Context, itemID string, counted float64, userID string) (CountResult, error) {
	item, err := s.catalog.FindItem(ctx, itemID)
	if err != nil {
		return CountResult{}, err
	}
	if counted < 0 {
		return CountResult{}, fmt.Errorf("%w: counted quantity %v", ErrQuantityNotPositive, counted)
	}

	theoretical, err := s.store.GetBalance(ctx, item.ID)
	if err != nil {
		return CountResult{}, err
	}

	difference := counted - theoretical
	count := models.Count{
		ID:          s.newID(),
		Timestamp:   s.now(),
		ItemID:      item.ID,
		Theoretical: theoretical,
		Counted:     counted,
		Difference:  difference,
		UserID:      userID,
	}

	if err := s.appendCount(ctx, count); err != nil {
		return CountResult{}, err
	}

	result := CountResult{Item: item, Count: count, NewBalance: theoretical}
	if math.Abs(difference) < ledger.Epsilon {
		s.logger.Debug("count matched theoretical balance", zap.String("item_id", item.ID))
		return result, nil
	}

	sign := 1
	if difference < 0 {
		sign = -1
	}
	txn := models.Transaction{
		ID:                s.newID(),
		Timestamp:         s.now(),
		ItemID:            item.ID,
		Action:            models.ActionAdjust,
		Sign:              sign,
		Quantity:          math.Abs(difference),
		EffectiveQuantity: difference,
		UserID:            userID,
		Note:              fmt.Sprintf("stock count: counted %v, theoretical %v", counted, theoretical),
	}

	newBalance, err := s.persist(ctx, item, txn)
	if err != nil {
		return result, err
	}

	result.Adjustment = &txn
	result.NewBalance = newBalance
	return result, nil
}

// persist appends the transaction first, then updates the balance store. A
// balance failure after a successful append surfaces as ErrBalanceOutOfSync
// with the transaction already durable.
func (s *Service) persist(ctx context.Context, item models.Item, txn models.Transaction) (float64, error) {
	if err := s.appendTransaction(ctx, txn); err != nil {
		return 0, fmt.Errorf("append transaction: %w", err)
	}

	newBalance, err := s.store.ApplyDelta(ctx, item.ID, txn.EffectiveQuantity)
	if err != nil {
		s.logger.Error("balance update failed after transaction append",
			zap.String("trans_id", txn.ID),
			zap.String("item_id", item.ID),
			zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrBalanceOutOfSync, err)
	}

	s.logger.Info("movement recorded",
		zap.String("trans_id", txn.ID),
		zap.String("item_id", item.ID),
		zap.String("action", string(txn.Action)),
		zap.Float64("effective_quantity", txn.EffectiveQuantity),
		zap.Float64("new_balance", newBalance))

	s.maybeAlertLowStock(ctx, item, newBalance)
	return newBalance, nil
}

func (s *Service) appendTransaction(ctx context.Context, txn models.Transaction) error {
	return s.repo.AppendRow(ctx, s.transactionsSheet, map[string]interface{}{
		"trans_id":           txn.ID,
		"timestamp":          txn.Timestamp.Format(time.RFC3339),
		"item_id":            txn.ItemID,
		"action":             string(txn.Action),
		"sign":               txn.Sign,
		"quantity":           txn.Quantity,
		"effective_quantity": txn.EffectiveQuantity,
		"user_id":            txn.UserID,
		"note":               txn.Note,
	})
}

func (s *Service) appendCount(ctx context.Context, count models.Count) error {
	return s.repo.AppendRow(ctx, s.countsSheet, map[string]interface{}{
		"count_id":            count.ID,
		"timestamp":           count.Timestamp.Format(time.RFC3339),
		"item_id":             count.ItemID,
		"theoretical_balance": count.Theoretical,
		"counted_quantity":    count.Counted,
		"difference":          count.Difference,
		"user_id":             count.UserID,
	})
}

// Low-stock notification is best effort: a webhook failure never fails the
// movement that triggered it.
func (s *Service) maybeAlertLowStock(ctx context.Context, item models.Item, balance float64) {
	if s.alerts == nil || item.MinStock <= 0 || balance >= item.MinStock {
		return
	}

	alert := alerts.LowStockAlert{
		ItemID:   item.ID,
		Name:     item.Name,
		Unit:     item.Unit,
		Balance:  balance,
		MinStock: item.MinStock,
		At:       s.now(),
	}
	if err := s.alerts.NotifyLowStock(ctx, alert); err != nil {
		s.logger.Warn("low stock alert failed", zap.String("item_id", item.ID), zap.Error(err))
	}
}
