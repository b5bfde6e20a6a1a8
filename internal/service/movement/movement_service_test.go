package movement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mvbarros/estoque/internal/domain/models"
	"github.com/mvbarros/estoque/internal/repository/sheets/sheetstest"
	"github.com/mvbarros/estoque/internal/service/catalog"
	"github.com/mvbarros/estoque/internal/service/ledger"
)

var (
	itemsHeader        = []string{"item_id", "name", "unit", "min_stock", "active"}
	transactionsHeader = []string{"trans_id", "timestamp", "item_id", "action", "sign", "quantity", "effective_quantity", "user_id", "note"}
	countsHeader       = []string{"count_id", "timestamp", "item_id", "theoretical_balance", "counted_quantity", "difference", "user_id"}
	balancesHeader     = []string{"item_id", "current_balance"}
)

func newFixture(t *testing.T, materialized bool) (*Service, *sheetstest.Fake) {
	t.Helper()

	fake := sheetstest.NewFake()
	fake.Seed("ITEMS", itemsHeader, []interface{}{"A", "Test item", "pc", 0, ""})
	fake.Seed("TRANSACTIONS", transactionsHeader)
	fake.Seed("COUNTS", countsHeader)
	fake.Seed("BALANCES", balancesHeader)

	catalogSvc := catalog.NewService(fake, "ITEMS", "USERS", time.Minute, zap.NewNop())

	var store ledger.BalanceStore
	if materialized {
		store = ledger.NewMaterializedStore(fake, "BALANCES", time.Minute, zap.NewNop())
	} else {
		store = ledger.NewLedgerStore(fake, "TRANSACTIONS", time.Minute, zap.NewNop())
	}

	return NewService(catalogSvc, store, fake, nil, "TRANSACTIONS", "COUNTS", zap.NewNop()), fake
}

func TestRecordEndToEndScenario(t *testing.T) {
	svc, fake := newFixture(t, false)
	ctx := context.Background()

	// IN 10: balance 0 -> 10.
	result, err := svc.Record(ctx, Request{ItemID: "A", Action: models.ActionIn, Quantity: 10, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.NewBalance)
	assert.Equal(t, 1, result.Transaction.Sign)
	assert.Equal(t, 10.0, result.Transaction.EffectiveQuantity)

	// OUT 3: balance 10 -> 7, no confirmation needed since 7 >= 0.
	result, err = svc.Record(ctx, Request{ItemID: "A", Action: models.ActionOut, Quantity: 3, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 7.0, result.NewBalance)
	assert.Equal(t, -1, result.Transaction.Sign)
	assert.Equal(t, -3.0, result.Transaction.EffectiveQuantity)

	// OUT 10 unconfirmed: projected -3, rejected before any write.
	appendsBefore := fake.Appends["TRANSACTIONS"]
	_, err = svc.Record(ctx, Request{ItemID: "A", Action: models.ActionOut, Quantity: 10, UserID: "u1"})
	var negative *NegativeBalanceError
	require.ErrorAs(t, err, &negative)
	assert.Equal(t, -3.0, negative.Projected)
	assert.Equal(t, appendsBefore, fake.Appends["TRANSACTIONS"], "rejected movement must not write")

	// Same OUT confirmed: recorded, balance -3.
	result, err = svc.Record(ctx, Request{ItemID: "A", Action: models.ActionOut, Quantity: 10, UserID: "u1", ConfirmNegative: true})
	require.NoError(t, err)
	assert.Equal(t, -3.0, result.NewBalance)
	assert.Equal(t, appendsBefore+1, fake.Appends["TRANSACTIONS"])
}

func TestRecordValidatesQuantity(t *testing.T) {
	svc, fake := newFixture(t, false)

	for _, action := range []models.ActionKind{models.ActionIn, models.ActionOut} {
		_, err := svc.Record(context.Background(), Request{ItemID: "A", Action: action, Quantity: 0, UserID: "u1"})
		assert.ErrorIs(t, err, ErrQuantityNotPositive)

		_, err = svc.Record(context.Background(), Request{ItemID: "A", Action: action, Quantity: -2, UserID: "u1"})
		assert.ErrorIs(t, err, ErrQuantityNotPositive)
	}

	assert.Zero(t, fake.Appends["TRANSACTIONS"])
}

func TestRecordUnknownItem(t *testing.T) {
	svc, fake := newFixture(t, false)

	_, err := svc.Record(context.Background(), Request{ItemID: "GHOST", Action: models.ActionIn, Quantity: 1, UserID: "u1"})
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
	assert.Zero(t, fake.Appends["TRANSACTIONS"])
}

func TestRecordNormalizesItemIdentifier(t *testing.T) {
	svc, _ := newFixture(t, false)
	ctx := context.Background()

	_, err := svc.Record(ctx, Request{ItemID: " a ", Action: models.ActionIn, Quantity: 4, UserID: "u1"})
	require.NoError(t, err)

	result, err := svc.Record(ctx, Request{ItemID: "A", Action: models.ActionIn, Quantity: 1, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.NewBalance)
}

func TestRecordCountEmitsSingleAdjustment(t *testing.T) {
	svc, fake := newFixture(t, false)
	ctx := context.Background()

	_, err := svc.Record(ctx, Request{ItemID: "A", Action: models.ActionIn, Quantity: 12, UserID: "u1"})
	require.NoError(t, err)

	// counted=5 against theoretical=12: one ADJUST of -7, balance lands on 5.
	result, err := svc.RecordCount(ctx, "A", 5, "u1")
	require.NoError(t, err)
	assert.Equal(t, 12.0, result.Count.Theoretical)
	assert.Equal(t, -7.0, result.Count.Difference)
	require.NotNil(t, result.Adjustment)
	assert.Equal(t, models.ActionAdjust, result.Adjustment.Action)
	assert.Equal(t, -1, result.Adjustment.Sign)
	assert.Equal(t, 7.0, result.Adjustment.Quantity)
	assert.Equal(t, -7.0, result.Adjustment.EffectiveQuantity)
	assert.Contains(t, result.Adjustment.Note, "counted 5")
	assert.Contains(t, result.Adjustment.Note, "theoretical 12")
	assert.Equal(t, 5.0, result.NewBalance)

	assert.Equal(t, 1, fake.Appends["COUNTS"])
	assert.Equal(t, 2, fake.Appends["TRANSACTIONS"], "exactly one adjustment beyond the IN")
}

func TestRecordCountMatchingBalanceIsAuditOnly(t *testing.T) {
	svc, fake := newFixture(t, false)
	ctx := context.Background()

	_, err := svc.Record(ctx, Request{ItemID: "A", Action: models.ActionIn, Quantity: 8, UserID: "u1"})
	require.NoError(t, err)

	result, err := svc.RecordCount(ctx, "A", 8, "u1")
	require.NoError(t, err)
	assert.Nil(t, result.Adjustment)
	assert.Equal(t, 8.0, result.NewBalance)

	assert.Equal(t, 1, fake.Appends["COUNTS"], "the count itself is still audited")
	assert.Equal(t, 1, fake.Appends["TRANSACTIONS"], "no adjustment transaction")
}

func TestRecordCountZeroIsFullWriteOff(t *testing.T) {
	svc, _ := newFixture(t, false)
	ctx := context.Background()

	_, err := svc.Record(ctx, Request{ItemID: "A", Action: models.ActionIn, Quantity: 6, UserID: "u1"})
	require.NoError(t, err)

	result, err := svc.RecordCount(ctx, "A", 0, "u1")
	require.NoError(t, err)
	require.NotNil(t, result.Adjustment)
	assert.Equal(t, -6.0, result.Adjustment.EffectiveQuantity)
	assert.Equal(t, 0.0, result.NewBalance)
}

func TestRecordCountRejectsNegativeCount(t *testing.T) {
	svc, _ := newFixture(t, false)

	_, err := svc.RecordCount(context.Background(), "A", -1, "u1")
	assert.ErrorIs(t, err, ErrQuantityNotPositive)
}

func TestMaterializedStrategyCreatesAndUpdatesBalanceRow(t *testing.T) {
	svc, fake := newFixture(t, true)
	ctx := context.Background()

	result, err := svc.Record(ctx, Request{ItemID: "A", Action: models.ActionIn, Quantity: 10, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.NewBalance)

	rows := fake.Rows("BALANCES")
	require.Len(t, rows, 1)
	assert.Equal(t, 10.0, rows[0][1])

	result, err = svc.Record(ctx, Request{ItemID: "A", Action: models.ActionOut, Quantity: 4, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 6.0, result.NewBalance)

	rows = fake.Rows("BALANCES")
	require.Len(t, rows, 1)
	assert.Equal(t, 6.0, rows[0][1])
}

func TestMaterializedBalanceWriteFailureKeepsTransaction(t *testing.T) {
	svc, fake := newFixture(t, true)
	ctx := context.Background()

	_, err := svc.Record(ctx, Request{ItemID: "A", Action: models.ActionIn, Quantity: 10, UserID: "u1"})
	require.NoError(t, err)

	// The balance row update fails after the transaction row was appended.
	fake.NextUpdateErr = errors.New("quota exceeded")
	_, err = svc.Record(ctx, Request{ItemID: "A", Action: models.ActionIn, Quantity: 5, UserID: "u1"})
	assert.ErrorIs(t, err, ErrBalanceOutOfSync)

	// The transaction is durable; the ledger now disagrees with the table
	// until the reconciliation pass repairs it.
	assert.Equal(t, 2, fake.Appends["TRANSACTIONS"])
	rows := fake.Rows("BALANCES")
	require.Len(t, rows, 1)
	assert.Equal(t, 10.0, rows[0][1])

	ledgerView := ledger.NewLedgerStore(fake, "TRANSACTIONS", time.Minute, zap.NewNop())
	table := ledger.NewMaterializedStore(fake, "BALANCES", time.Minute, zap.NewNop())
	report, err := ledger.NewReconciler(ledgerView, table, zap.NewNop()).Run(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Corrections, 1)

	balance, err := table.GetBalance(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 15.0, balance)
}
