package usecase

import (
	"context"
	"fmt"

	"github.com/fekuna/omnipos-sync/internal/device"
	"github.com/fekuna/omnipos-sync/internal/inventory"
	"github.com/fekuna/omnipos-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type inventoryUseCase struct {
	repo   inventory.Repository
	outbox outbox.UseCase
	logger logger.ZapLogger
}

func NewInventoryUseCase(repo inventory.Repository, ob outbox.UseCase, log logger.ZapLogger) inventory.UseCase {
	return &inventoryUseCase{
		repo:   repo,
		outbox: ob,
		logger: log,
	}
}

func (uc *inventoryUseCase) Adjust(ctx context.Context, dc device.Context, input *dto.StockMoveInput) (*model.StockMove, error) {
	moveID, err := uc.outbox.EnqueueStockMove(ctx, dc, input)
	if err != nil {
		return nil, err
	}

	move, err := uc.repo.FindMove(ctx, moveID)
	if err != nil {
		return nil, err
	}
	if move == nil {
		return nil, inventory.ErrMoveNotFound
	}

	uc.logger.Info("Stock adjusted",
		zap.String("move_id", move.MoveID),
		zap.String("product_code", move.ProductCode),
		zap.String("unit_level", string(move.UnitLevel)),
		zap.Float64("delta", move.Delta),
		zap.String("reason", string(move.Reason)),
	)
	return move, nil
}

func (uc *inventoryUseCase) Void(ctx context.Context, dc device.Context, moveID string) (*model.StockMove, error) {
	// 1. Load the move being voided
	orig, err := uc.repo.FindMove(ctx, moveID)
	if err != nil {
		return nil, err
	}
	if orig == nil {
		return nil, inventory.ErrMoveNotFound
	}

	// 2. A move is voided at most once
	existing, err := uc.repo.ListMoves(ctx, &dto.MoveFilters{
		ProductCode: orig.ProductCode,
		Reason:      model.ReasonCorrection,
		ReferenceID: orig.MoveID,
		Limit:       1,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: %s", inventory.ErrAlreadyVoided, moveID)
	}

	// 3. Append the opposite delta
	return uc.Adjust(ctx, dc, &dto.StockMoveInput{
		ProductUUID: orig.ProductUUID,
		ProductCode: orig.ProductCode,
		UnitLevel:   orig.UnitLevel,
		UnitMark:    orig.UnitMark,
		Delta:       -orig.Delta,
		Reason:      model.ReasonCorrection,
		ReferenceID: orig.MoveID,
	})
}

func (uc *inventoryUseCase) Reconstruct(ctx context.Context, key model.UnitKey) (float64, error) {
	unit, err := uc.repo.FindUnit(ctx, key)
	if err != nil {
		return 0, err
	}
	if unit == nil {
		return 0, inventory.ErrUnitNotFound
	}

	sum, err := uc.repo.SumSince(ctx, key, unit.BaselineMoveSeq)
	if err != nil {
		return 0, fmt.Errorf("failed to sum stock moves: %w", err)
	}

	return decimal.NewFromFloat(unit.StockInitial).Add(decimal.NewFromFloat(sum)).InexactFloat64(), nil
}

func (uc *inventoryUseCase) ListUnsynced(ctx context.Context, limit int) ([]model.StockMove, error) {
	return uc.repo.ListUnsynced(ctx, limit)
}

func (uc *inventoryUseCase) ListMoves(ctx context.Context, filters *dto.MoveFilters) ([]model.StockMove, error) {
	if filters == nil {
		filters = &dto.MoveFilters{}
	}
	return uc.repo.ListMoves(ctx, filters)
}
