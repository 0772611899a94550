package inventory

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-sync/internal/device"
	"github.com/fekuna/omnipos-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-sync/internal/model"
)

var (
	ErrUnitNotFound  = errors.New("product unit not found")
	ErrMoveNotFound  = errors.New("stock move not found")
	ErrInvalidReason = errors.New("invalid stock move reason")
	ErrZeroDelta     = errors.New("stock move delta must not be zero")
	ErrAlreadyVoided = errors.New("stock move already voided")
)

type UseCase interface {
	Adjust(ctx context.Context, dc device.Context, input *dto.StockMoveInput) (*model.StockMove, error)
	// Void appends the opposite of moveID. The original row is kept.
	Void(ctx context.Context, dc device.Context, moveID string) (*model.StockMove, error)
	// Reconstruct recomputes a unit's stock from its baseline and ledger.
	Reconstruct(ctx context.Context, key model.UnitKey) (float64, error)
	ListUnsynced(ctx context.Context, limit int) ([]model.StockMove, error)
	ListMoves(ctx context.Context, filters *dto.MoveFilters) ([]model.StockMove, error)
}
