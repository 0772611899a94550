package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/device"
	invdto "github.com/fekuna/omnipos-sync/internal/inventory/dto"
	invrepo "github.com/fekuna/omnipos-sync/internal/inventory/repository"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	"github.com/fekuna/omnipos-sync/internal/outbox/dto"
	"github.com/fekuna/omnipos-sync/internal/outbox/repository"
	"github.com/fekuna/omnipos-sync/internal/testutil"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dc = device.Context{DeviceID: "device-0a1b2c3d"}

type fixture struct {
	db    *sqlx.DB
	uc    outbox.UseCase
	clock *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock()
	uc := NewOutboxUseCase(
		repository.NewSQLiteRepository(db),
		invrepo.NewSQLiteRepository(db),
		sqlite.NewTxManager(db),
		logger.NewNop(),
		WithClock(clock.Now),
		WithMaxTries(3),
	)
	return &fixture{db: db, uc: uc, clock: clock}
}

func (f *fixture) pending(t *testing.T) []model.SyncOperation {
	t.Helper()
	ops, err := f.uc.GetPendingOperations(context.Background(), nil)
	require.NoError(t, err)
	return ops
}

func (f *fixture) status(t *testing.T, opID string) model.OpStatus {
	t.Helper()
	var s model.OpStatus
	require.NoError(t, f.db.Get(&s, `SELECT status FROM sync_operations WHERE op_id = ?`, opID))
	return s
}

func TestEnqueueProductPatch_MergesPendingOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.uc.EnqueueProductPatch(ctx, dc, "p-uuid", "RIZ25", dto.ProductPatch{Name: dto.Ptr("Riz")})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	second, err := f.uc.EnqueueProductPatch(ctx, dc, "p-uuid", "RIZ25", dto.ProductPatch{IsActive: dto.Ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	third, err := f.uc.EnqueueProductPatch(ctx, dc, "p-uuid", "RIZ25", dto.ProductPatch{Name: dto.Ptr("Riz 25kg")})
	require.NoError(t, err)
	assert.Equal(t, first, third)

	ops := f.pending(t)
	require.Len(t, ops, 1)

	var payload dto.ProductPatchPayload
	require.NoError(t, json.Unmarshal([]byte(ops[0].Payload), &payload))
	assert.Equal(t, "p-uuid", payload.UUID)
	assert.Equal(t, "RIZ25", payload.Code)
	require.NotNil(t, payload.Name)
	assert.Equal(t, "Riz 25kg", *payload.Name)
	require.NotNil(t, payload.IsActive)
	assert.False(t, *payload.IsActive)
	assert.True(t, ops[0].UpdatedAt.After(ops[0].CreatedAt))
}

func TestEnqueueProductPatch_NewOpOnceSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.uc.EnqueueProductPatch(ctx, dc, "p-uuid", "RIZ25", dto.ProductPatch{Name: dto.Ptr("Riz")})
	require.NoError(t, err)
	require.NoError(t, f.uc.MarkAsSent(ctx, []string{first}))

	second, err := f.uc.EnqueueProductPatch(ctx, dc, "p-uuid", "RIZ25", dto.ProductPatch{Name: dto.Ptr("Riz 25kg")})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, model.StatusSent, f.status(t, first))

	ops := f.pending(t)
	require.Len(t, ops, 1)
	assert.Equal(t, second, ops[0].OpID)
}

func TestEnqueue_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.EnqueueProductPatch(ctx, dc, "p-uuid", "RIZ25", dto.ProductPatch{})
	assert.ErrorIs(t, err, outbox.ErrEmptyPatch)

	_, err = f.uc.EnqueueProductPatch(ctx, device.Context{}, "p-uuid", "RIZ25", dto.ProductPatch{Name: dto.Ptr("x")})
	assert.ErrorIs(t, err, outbox.ErrMissingDevice)

	_, err = f.uc.EnqueueUnitPatch(ctx, dc, "", "RIZ25", model.UnitCarton, "", dto.UnitPatch{QtyStep: dto.Ptr(1.0)})
	assert.ErrorIs(t, err, outbox.ErrMissingEntity)

	assert.Empty(t, f.pending(t))
}

func TestEnqueueUnitPatch_CompositeIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	carton, err := f.uc.EnqueueUnitPatch(ctx, dc, "p-uuid", "RIZ25", model.UnitCarton, "", dto.UnitPatch{SalePriceUSD: dto.Ptr(10.0)})
	require.NoError(t, err)
	piece, err := f.uc.EnqueueUnitPatch(ctx, dc, "p-uuid", "RIZ25", model.UnitPiece, "", dto.UnitPatch{SalePriceUSD: dto.Ptr(0.5)})
	require.NoError(t, err)
	again, err := f.uc.EnqueueUnitPatch(ctx, dc, "p-uuid", "RIZ25", model.UnitCarton, "", dto.UnitPatch{QtyStep: dto.Ptr(2.0)})
	require.NoError(t, err)

	assert.NotEqual(t, carton, piece)
	assert.Equal(t, carton, again)

	ops := f.pending(t)
	require.Len(t, ops, 2)
	assert.Equal(t, "p-uuid-CARTON-", ops[0].EntityUUID)
	assert.Equal(t, "RIZ25", ops[0].EntityCode)

	pending, err := f.uc.HasUnitPatchPending(ctx, model.UnitKey{ProductCode: "RIZ25", UnitLevel: model.UnitCarton})
	require.NoError(t, err)
	assert.True(t, pending)

	pending, err = f.uc.HasUnitPatchPending(ctx, model.UnitKey{ProductCode: "RIZ25", UnitLevel: model.UnitMillier})
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestEnqueueStockMove_SnapshotAndCompanionOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, model.Product{Code: "RIZ25", Name: "Riz", IsActive: true},
		model.ProductUnit{UnitLevel: model.UnitCarton, StockInitial: 10, StockCurrent: 10},
	)
	key := model.UnitKey{ProductCode: "RIZ25", UnitLevel: model.UnitCarton}

	moveID, err := f.uc.EnqueueStockMove(ctx, dc, &invdto.StockMoveInput{
		ProductUUID: p.UUID,
		ProductCode: "RIZ25",
		UnitLevel:   model.UnitCarton,
		Delta:       -3,
		Reason:      model.ReasonSale,
		ReferenceID: "FAC-001",
	})
	require.NoError(t, err)

	var move model.StockMove
	require.NoError(t, f.db.Get(&move, `SELECT * FROM stock_moves WHERE move_id = ?`, moveID))
	assert.Equal(t, 10.0, move.StockBefore)
	assert.Equal(t, 7.0, move.StockAfter)
	assert.False(t, move.Synced)
	require.NotNil(t, move.ReferenceID)
	assert.Equal(t, "FAC-001", *move.ReferenceID)

	var stock float64
	require.NoError(t, f.db.Get(&stock, `SELECT stock_current FROM product_units WHERE id = ?`, p.Units[0].ID))
	assert.Equal(t, 7.0, stock)

	ops := f.pending(t)
	require.Len(t, ops, 1)
	assert.Equal(t, model.OpStockMove, ops[0].OpType)
	var payload dto.StockMovePayload
	require.NoError(t, json.Unmarshal([]byte(ops[0].Payload), &payload))
	assert.Equal(t, moveID, payload.MoveID)
	assert.Equal(t, -3.0, payload.Delta)

	delta, err := f.uc.GetPendingStockDelta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, -3.0, delta)

	require.NoError(t, f.uc.MarkStockMovesSynced(ctx, []string{moveID}))
	pending, err := f.uc.HasStockMovePending(ctx, key)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestEnqueueStockMove_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedProduct(t, f.db, model.Product{Code: "RIZ25"}, model.ProductUnit{UnitLevel: model.UnitCarton})

	in := func(delta float64, reason model.MoveReason, level model.UnitLevel) *invdto.StockMoveInput {
		return &invdto.StockMoveInput{ProductCode: "RIZ25", UnitLevel: level, Delta: delta, Reason: reason}
	}

	_, err := f.uc.EnqueueStockMove(ctx, dc, in(0, model.ReasonAdjustment, model.UnitCarton))
	assert.Error(t, err)
	_, err = f.uc.EnqueueStockMove(ctx, dc, in(1, "gift", model.UnitCarton))
	assert.Error(t, err)
	_, err = f.uc.EnqueueStockMove(ctx, dc, in(1, model.ReasonAdjustment, model.UnitPiece))
	assert.Error(t, err)

	var moves int
	require.NoError(t, f.db.Get(&moves, `SELECT COUNT(*) FROM stock_moves`))
	assert.Zero(t, moves)
	assert.Empty(t, f.pending(t))
}

func TestRetryErrorOperations_RespectsCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	opID, err := f.uc.EnqueueProductPatch(ctx, dc, "p-uuid", "RIZ25", dto.ProductPatch{Name: dto.Ptr("Riz")})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, f.uc.MarkAsSent(ctx, []string{opID}))
		require.NoError(t, f.uc.MarkAsError(ctx, opID, "rejected"))

		n, err := f.uc.RetryErrorOperations(ctx)
		require.NoError(t, err)
		if i < 3 {
			assert.Equal(t, int64(1), n, "attempt %d", i)
			assert.Equal(t, model.StatusPending, f.status(t, opID))
		} else {
			assert.Zero(t, n)
			assert.Equal(t, model.StatusError, f.status(t, opID))
		}
	}

	stats, err := f.uc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.ErrorsAtCap)

	n, err := f.uc.Requeue(ctx, []string{opID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, model.StatusPending, f.status(t, opID))
}

func TestAckAndRecover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.uc.EnqueueProductPatch(ctx, dc, "a", "A", dto.ProductPatch{Name: dto.Ptr("A")})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	b, err := f.uc.EnqueueProductPatch(ctx, dc, "b", "B", dto.ProductPatch{Name: dto.Ptr("B")})
	require.NoError(t, err)

	ops := f.pending(t)
	require.Len(t, ops, 2)
	assert.Equal(t, a, ops[0].OpID)
	assert.Equal(t, b, ops[1].OpID)

	require.NoError(t, f.uc.MarkAsSent(ctx, []string{a, b}))
	require.NoError(t, f.uc.MarkAsAcked(ctx, []string{a}))

	n, err := f.uc.RecoverInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, model.StatusAcked, f.status(t, a))
	assert.Equal(t, model.StatusPending, f.status(t, b))

	stats, err := f.uc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPending)
	assert.Equal(t, 1, stats.PendingByType[model.OpProductPatch])
	require.NotNil(t, stats.LastAckedAt)
	assert.True(t, stats.LastAckedAt.Equal(f.clock.T))
}

func TestHasProductPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.EnqueueProductPatch(ctx, dc, "p-uuid", "RIZ25", dto.ProductPatch{Name: dto.Ptr("Riz")})
	require.NoError(t, err)

	pending, err := f.uc.HasProductPending(ctx, "RIZ25")
	require.NoError(t, err)
	assert.True(t, pending)

	pending, err = f.uc.HasProductPending(ctx, "SUCRE")
	require.NoError(t, err)
	assert.False(t, pending)
}
