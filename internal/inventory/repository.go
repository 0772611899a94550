package inventory

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// Units
	FindUnit(ctx context.Context, key model.UnitKey) (*model.ProductUnit, error)
	SetUnitStock(ctx context.Context, unitID int64, stock float64, at time.Time) error

	// Moves
	CreateMove(ctx context.Context, move *model.StockMove) error
	FindMove(ctx context.Context, moveID string) (*model.StockMove, error)
	ListMoves(ctx context.Context, filters *dto.MoveFilters) ([]model.StockMove, error)
	ListUnsynced(ctx context.Context, limit int) ([]model.StockMove, error)
	HasUnsynced(ctx context.Context, key model.UnitKey) (bool, error)
	UnsyncedDelta(ctx context.Context, key model.UnitKey) (float64, error)
	MarkSynced(ctx context.Context, moveIDs []string, at time.Time) error

	// SumSince adds up the deltas of key recorded after move sequence seq.
	SumSince(ctx context.Context, key model.UnitKey, seq int64) (float64, error)
	LastMoveSeq(ctx context.Context) (int64, error)

	WithTx(tx *sqlx.Tx) Repository
}
