package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mvbarros/estoque/internal/domain/models"
	"github.com/mvbarros/estoque/internal/server/session"
	"github.com/mvbarros/estoque/internal/service/catalog"
	"github.com/mvbarros/estoque/internal/service/ledger"
	"github.com/mvbarros/estoque/internal/service/movement"
)

// MovementHandler serves the single-item data-entry cycle: resolve the
// scanned item, record movements and counts, and the balances dashboard.
type MovementHandler struct {
	catalog    *catalog.Service
	movements  *movement.Service
	store      ledger.BalanceStore
	ledgerView *ledger.LedgerStore
	sessions   *session.Manager
	logger     *zap.Logger
}

// NewMovementHandler constructs the movement handler.
func NewMovementHandler(catalogSvc *catalog.Service, movements *movement.Service, store ledger.BalanceStore, ledgerView *ledger.LedgerStore, sessions *session.Manager, logger *zap.Logger) *MovementHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovementHandler{
		catalog:    catalogSvc,
		movements:  movements,
		store:      store,
		ledgerView: ledgerView,
		sessions:   sessions,
		logger:     logger,
	}
}

// ItemLookup resolves the ?item= parameter a QR scan lands with. Without the
// parameter the session stays (or returns to) awaiting-item.
func (h *MovementHandler) ItemLookup(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}

	itemID := c.Query("item")
	if itemID == "" {
		sess.Reset()
		h.sessions.Update(sess)
		c.JSON(http.StatusOK, gin.H{"state": sess.State, "mode": sess.Mode})
		return
	}

	item, err := h.catalog.FindItem(c.Request.Context(), itemID)
	if err != nil {
		// Unknown identifier: the machine stays in awaiting-item.
		sess.Reset()
		h.sessions.Update(sess)
		h.respondLookupError(c, err)
		return
	}

	balance, err := h.store.GetBalance(c.Request.Context(), item.ID)
	if err != nil {
		h.logger.Error("balance read failed", zap.String("item_id", item.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "backing store unavailable"})
		return
	}

	sess.State = session.StateItemLoaded
	sess.ItemID = item.ID
	h.sessions.Update(sess)

	c.JSON(http.StatusOK, gin.H{
		"state":   sess.State,
		"mode":    sess.Mode,
		"balance": balance,
		"item": gin.H{
			"item_id":   item.ID,
			"name":      item.Name,
			"unit":      item.Unit,
			"location":  item.Location,
			"category":  item.Category,
			"min_stock": item.MinStock,
		},
	})
}

type movementRequest struct {
	ItemID   string  `json:"item" binding:"required"`
	Action   string  `json:"action" binding:"required"`
	Quantity float64 `json:"quantity"`
	Sign     int     `json:"sign"`
	Note     string  `json:"note"`
	Confirm  bool    `json:"confirm"`
}

// Record handles one IN, OUT or ADJUST movement.
func (h *MovementHandler) Record(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}

	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item and action are required"})
		return
	}

	action, err := models.ParseActionKind(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.movements.Record(c.Request.Context(), movement.Request{
		ItemID:          req.ItemID,
		Action:          action,
		Quantity:        req.Quantity,
		AdjustSign:      req.Sign,
		Note:            req.Note,
		UserID:          sess.UserID,
		ConfirmNegative: req.Confirm,
	})
	if err != nil {
		h.respondMovementError(c, sess, err)
		return
	}

	// Recorded: the stored session resets for the next scan, keeping the
	// action mode sticky.
	sess.Mode = session.ModeForAction(action)
	sess.Reset()
	h.sessions.Update(sess)

	c.JSON(http.StatusCreated, gin.H{
		"trans_id":    result.Transaction.ID,
		"action":      result.Transaction.Action,
		"effective":   result.Transaction.EffectiveQuantity,
		"new_balance": result.NewBalance,
		"state":       session.StateRecorded,
		"mode":        sess.Mode,
	})
}

type countRequest struct {
	ItemID  string  `json:"item" binding:"required"`
	Counted float64 `json:"counted"`
}

// RecordCount reconciles a physical count against the theoretical balance.
func (h *MovementHandler) RecordCount(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}

	var req countRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item is required"})
		return
	}

	result, err := h.movements.RecordCount(c.Request.Context(), req.ItemID, req.Counted, sess.UserID)
	if err != nil {
		h.respondMovementError(c, sess, err)
		return
	}

	sess.Mode = session.ModeInventory
	sess.Reset()
	h.sessions.Update(sess)

	response := gin.H{
		"count_id":    result.Count.ID,
		"theoretical": result.Count.Theoretical,
		"counted":     result.Count.Counted,
		"difference":  result.Count.Difference,
		"new_balance": result.NewBalance,
		"state":       session.StateRecorded,
		"mode":        sess.Mode,
	}
	if result.Adjustment != nil {
		response["adjustment_trans_id"] = result.Adjustment.ID
	}
	c.JSON(http.StatusCreated, response)
}

// Balances serves the dashboard: ledger-derived balance for every item.
func (h *MovementHandler) Balances(c *gin.Context) {
	sums, err := h.ledgerView.Sums(c.Request.Context())
	if err != nil {
		h.logger.Error("dashboard sums failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "backing store unavailable"})
		return
	}

	items, err := h.catalog.Items(c.Request.Context())
	if err != nil {
		h.logger.Error("dashboard items failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "backing store unavailable"})
		return
	}

	type row struct {
		ItemID   string  `json:"item_id"`
		Name     string  `json:"name"`
		Unit     string  `json:"unit"`
		Location string  `json:"location"`
		Balance  float64 `json:"balance"`
		MinStock float64 `json:"min_stock"`
		BelowMin bool    `json:"below_min"`
	}

	rows := make([]row, 0, len(items))
	for key, item := range items {
		balance := sums[key]
		rows = append(rows, row{
			ItemID:   item.ID,
			Name:     item.Name,
			Unit:     item.Unit,
			Location: item.Location,
			Balance:  balance,
			MinStock: item.MinStock,
			BelowMin: item.MinStock > 0 && balance < item.MinStock,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ItemID < rows[j].ItemID })

	c.JSON(http.StatusOK, gin.H{"balances": rows})
}

func (h *MovementHandler) respondLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrItemNotFound), errors.Is(err, catalog.ErrInactive):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "state": session.StateAwaitingItem})
	default:
		h.logger.Error("item lookup failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "backing store unavailable"})
	}
}

func (h *MovementHandler) respondMovementError(c *gin.Context, sess session.Session, err error) {
	var negative *movement.NegativeBalanceError
	switch {
	case errors.As(err, &negative):
		sess.State = session.StateAwaitingConfirmation
		h.sessions.Update(sess)
		c.JSON(http.StatusConflict, gin.H{
			"error":             "movement would drive the balance negative",
			"projected_balance": negative.Projected,
			"confirm_required":  true,
			"state":             sess.State,
		})
	case errors.Is(err, movement.ErrQuantityNotPositive):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, catalog.ErrItemNotFound), errors.Is(err, catalog.ErrInactive):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, movement.ErrBalanceOutOfSync):
		// The transaction row is durable; only the balance row lagged.
		h.logger.Error("balance out of sync", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		h.logger.Error("movement failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "backing store unavailable"})
	}
}
