package usecase

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/device"
	"github.com/fekuna/omnipos-sync/internal/inventory"
	"github.com/fekuna/omnipos-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-sync/internal/inventory/repository"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/model"
	obrepo "github.com/fekuna/omnipos-sync/internal/outbox/repository"
	obusecase "github.com/fekuna/omnipos-sync/internal/outbox/usecase"
	"github.com/fekuna/omnipos-sync/internal/testutil"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dc = device.Context{DeviceID: "device-0a1b2c3d"}

var cartonKey = model.UnitKey{ProductCode: "RIZ25", UnitLevel: model.UnitCarton}

func newUseCase(t *testing.T) (inventory.UseCase, *sqlx.DB, *model.Product) {
	t.Helper()
	db := testutil.NewDB(t)
	repo := repository.NewSQLiteRepository(db)
	ob := obusecase.NewOutboxUseCase(obrepo.NewSQLiteRepository(db), repo, sqlite.NewTxManager(db), logger.NewNop())

	p := testutil.SeedProduct(t, db, model.Product{Code: "RIZ25", Name: "Riz", IsActive: true},
		model.ProductUnit{UnitLevel: model.UnitCarton, StockInitial: 20, StockCurrent: 20},
	)
	return NewInventoryUseCase(repo, ob, logger.NewNop()), db, p
}

func adjust(delta float64, reason model.MoveReason) *dto.StockMoveInput {
	return &dto.StockMoveInput{
		ProductCode: "RIZ25",
		UnitLevel:   model.UnitCarton,
		Delta:       delta,
		Reason:      reason,
	}
}

func TestAdjust_AllowsNegativeStock(t *testing.T) {
	uc, _, p := newUseCase(t)
	ctx := context.Background()

	in := adjust(-25, model.ReasonInventory)
	in.ProductUUID = p.UUID
	move, err := uc.Adjust(ctx, dc, in)
	require.NoError(t, err)
	assert.Equal(t, 20.0, move.StockBefore)
	assert.Equal(t, -5.0, move.StockAfter)
	assert.Equal(t, dc.DeviceID, move.DeviceID)

	stock, err := uc.Reconstruct(ctx, cartonKey)
	require.NoError(t, err)
	assert.Equal(t, -5.0, stock)
}

func TestAdjust_DeltasCommute(t *testing.T) {
	deltas := []float64{-3, 7.5, -0.25, 4}
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}}

	for _, order := range orders {
		uc, _, _ := newUseCase(t)
		ctx := context.Background()

		var last *model.StockMove
		for _, i := range order {
			m, err := uc.Adjust(ctx, dc, adjust(deltas[i], model.ReasonAdjustment))
			require.NoError(t, err)
			last = m
		}
		assert.Equal(t, 28.25, last.StockAfter)

		stock, err := uc.Reconstruct(ctx, cartonKey)
		require.NoError(t, err)
		assert.Equal(t, 28.25, stock)
	}
}

func TestVoid_AppendsOppositeOnce(t *testing.T) {
	uc, _, _ := newUseCase(t)
	ctx := context.Background()

	orig, err := uc.Adjust(ctx, dc, adjust(-4, model.ReasonSale))
	require.NoError(t, err)

	correction, err := uc.Void(ctx, dc, orig.MoveID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, correction.Delta)
	assert.Equal(t, model.ReasonCorrection, correction.Reason)
	require.NotNil(t, correction.ReferenceID)
	assert.Equal(t, orig.MoveID, *correction.ReferenceID)
	assert.Equal(t, 20.0, correction.StockAfter)

	_, err = uc.Void(ctx, dc, orig.MoveID)
	assert.ErrorIs(t, err, inventory.ErrAlreadyVoided)

	_, err = uc.Void(ctx, dc, "missing")
	assert.ErrorIs(t, err, inventory.ErrMoveNotFound)

	moves, err := uc.ListMoves(ctx, &dto.MoveFilters{ProductCode: "RIZ25"})
	require.NoError(t, err)
	assert.Len(t, moves, 2)
}

func TestReconstruct_FromBaseline(t *testing.T) {
	uc, db, p := newUseCase(t)
	ctx := context.Background()

	_, err := uc.Adjust(ctx, dc, adjust(-2, model.ReasonSale))
	require.NoError(t, err)

	// A remote overwrite rebases the unit past every existing move.
	var seq int64
	require.NoError(t, db.Get(&seq, `SELECT MAX(id) FROM stock_moves`))
	_, err = db.Exec(`UPDATE product_units SET stock_initial = 50, stock_current = 50, baseline_move_seq = ? WHERE id = ?`, seq, p.Units[0].ID)
	require.NoError(t, err)

	_, err = uc.Adjust(ctx, dc, adjust(-1, model.ReasonSale))
	require.NoError(t, err)

	stock, err := uc.Reconstruct(ctx, cartonKey)
	require.NoError(t, err)
	assert.Equal(t, 49.0, stock)

	_, err = uc.Reconstruct(ctx, model.UnitKey{ProductCode: "NOPE", UnitLevel: model.UnitPiece})
	assert.ErrorIs(t, err, inventory.ErrUnitNotFound)
}

func TestListUnsynced(t *testing.T) {
	uc, db, _ := newUseCase(t)
	ctx := context.Background()

	a, err := uc.Adjust(ctx, dc, adjust(1, model.ReasonAdjustment))
	require.NoError(t, err)
	_, err = uc.Adjust(ctx, dc, adjust(2, model.ReasonAdjustment))
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE stock_moves SET synced = 1 WHERE move_id = ?`, a.MoveID)
	require.NoError(t, err)

	moves, err := uc.ListUnsynced(ctx, 10)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, 2.0, moves[0].Delta)
}
