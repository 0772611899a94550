package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/device"
	"github.com/fekuna/omnipos-sync/internal/inventory"
	invdto "github.com/fekuna/omnipos-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	"github.com/fekuna/omnipos-sync/internal/outbox/dto"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Option func(*outboxUseCase)

// WithClock overrides the time source used for every timestamp.
func WithClock(now func() time.Time) Option {
	return func(uc *outboxUseCase) { uc.now = now }
}

func WithMaxTries(n int) Option {
	return func(uc *outboxUseCase) {
		if n > 0 {
			uc.maxTries = n
		}
	}
}

type outboxUseCase struct {
	repo     outbox.Repository
	ledger   inventory.Repository
	txm      sqlite.TxManager
	logger   logger.ZapLogger
	now      func() time.Time
	maxTries int
}

func NewOutboxUseCase(repo outbox.Repository, ledger inventory.Repository, txm sqlite.TxManager, log logger.ZapLogger, opts ...Option) outbox.UseCase {
	uc := &outboxUseCase{
		repo:     repo,
		ledger:   ledger,
		txm:      txm,
		logger:   log,
		now:      time.Now,
		maxTries: outbox.DefaultMaxTries,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *outboxUseCase) WithTx(tx *sqlx.Tx) outbox.UseCase {
	return &outboxUseCase{
		repo:     uc.repo.WithTx(tx),
		ledger:   uc.ledger.WithTx(tx),
		txm:      sqlite.BoundTx(tx),
		logger:   uc.logger,
		now:      uc.now,
		maxTries: uc.maxTries,
	}
}

func (uc *outboxUseCase) clock() time.Time {
	return uc.now().UTC()
}

func (uc *outboxUseCase) EnqueueProductPatch(ctx context.Context, dc device.Context, entityUUID, entityCode string, patch dto.ProductPatch) (string, error) {
	if !dc.Valid() {
		return "", outbox.ErrMissingDevice
	}
	if entityUUID == "" {
		return "", outbox.ErrMissingEntity
	}
	if patch.IsEmpty() {
		return "", outbox.ErrEmptyPatch
	}

	var opID string
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)
		now := uc.clock()

		// 1. Merge into the pending op when there is one
		existing, err := repo.FindPending(ctx, model.OpProductPatch, entityUUID)
		if err != nil {
			return err
		}
		if existing != nil {
			var payload dto.ProductPatchPayload
			if err := json.Unmarshal([]byte(existing.Payload), &payload); err != nil {
				return fmt.Errorf("failed to decode pending payload %s: %w", existing.OpID, err)
			}
			payload.ProductPatch = payload.ProductPatch.Merge(patch)
			if entityCode != "" {
				payload.Code = entityCode
			}
			raw, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			opID = existing.OpID
			return repo.UpdatePayload(ctx, existing.OpID, string(raw), payload.Code, now)
		}

		// 2. Otherwise append a new op
		raw, err := json.Marshal(dto.ProductPatchPayload{UUID: entityUUID, Code: entityCode, ProductPatch: patch})
		if err != nil {
			return err
		}
		op := newOperation(dc, model.OpProductPatch, entityUUID, entityCode, string(raw), now)
		opID = op.OpID
		return repo.Create(ctx, op)
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue product patch: %w", err)
	}

	uc.logger.Debug("Enqueued product patch", zap.String("op_id", opID), zap.String("entity_uuid", entityUUID))
	return opID, nil
}

// UnitEntityUUID is the composite identity of a unit patch.
func UnitEntityUUID(productUUID string, level model.UnitLevel, mark string) string {
	return fmt.Sprintf("%s-%s-%s", productUUID, level, mark)
}

func (uc *outboxUseCase) EnqueueUnitPatch(ctx context.Context, dc device.Context, productUUID, productCode string, level model.UnitLevel, mark string, patch dto.UnitPatch) (string, error) {
	if !dc.Valid() {
		return "", outbox.ErrMissingDevice
	}
	if productUUID == "" {
		return "", outbox.ErrMissingEntity
	}
	if patch.IsEmpty() {
		return "", outbox.ErrEmptyPatch
	}

	entityUUID := UnitEntityUUID(productUUID, level, mark)

	var opID string
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)
		now := uc.clock()

		existing, err := repo.FindPending(ctx, model.OpUnitPatch, entityUUID)
		if err != nil {
			return err
		}
		if existing != nil {
			var payload dto.UnitPatchPayload
			if err := json.Unmarshal([]byte(existing.Payload), &payload); err != nil {
				return fmt.Errorf("failed to decode pending payload %s: %w", existing.OpID, err)
			}
			payload.UnitPatch = payload.UnitPatch.Merge(patch)
			if productCode != "" {
				payload.ProductCode = productCode
			}
			raw, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			opID = existing.OpID
			return repo.UpdatePayload(ctx, existing.OpID, string(raw), payload.ProductCode, now)
		}

		raw, err := json.Marshal(dto.UnitPatchPayload{
			ProductUUID: productUUID,
			ProductCode: productCode,
			UnitLevel:   level,
			UnitMark:    mark,
			UnitPatch:   patch,
		})
		if err != nil {
			return err
		}
		op := newOperation(dc, model.OpUnitPatch, entityUUID, productCode, string(raw), now)
		opID = op.OpID
		return repo.Create(ctx, op)
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue unit patch: %w", err)
	}

	uc.logger.Debug("Enqueued unit patch", zap.String("op_id", opID), zap.String("entity_uuid", entityUUID))
	return opID, nil
}

func (uc *outboxUseCase) EnqueueStockMove(ctx context.Context, dc device.Context, in *invdto.StockMoveInput) (string, error) {
	if !dc.Valid() {
		return "", outbox.ErrMissingDevice
	}
	if !in.Reason.Valid() {
		return "", inventory.ErrInvalidReason
	}
	if in.Delta == 0 {
		return "", inventory.ErrZeroDelta
	}

	var move *model.StockMove
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		ledger := uc.ledger.WithTx(tx)
		repo := uc.repo.WithTx(tx)
		now := uc.clock()

		// 1. Snapshot the unit
		unit, err := ledger.FindUnit(ctx, in.Key())
		if err != nil {
			return err
		}
		if unit == nil {
			return fmt.Errorf("%w: %s/%s/%s", inventory.ErrUnitNotFound, in.ProductCode, in.UnitLevel, in.UnitMark)
		}

		before := decimal.NewFromFloat(unit.StockCurrent)
		after := before.Add(decimal.NewFromFloat(in.Delta))

		var refID *string
		if in.ReferenceID != "" {
			refID = &in.ReferenceID
		}

		move = &model.StockMove{
			MoveID:      uuid.New().String(),
			ProductUUID: in.ProductUUID,
			ProductCode: in.ProductCode,
			UnitLevel:   in.UnitLevel,
			UnitMark:    in.UnitMark,
			Delta:       in.Delta,
			Reason:      in.Reason,
			ReferenceID: refID,
			StockBefore: before.InexactFloat64(),
			StockAfter:  after.InexactFloat64(),
			DeviceID:    dc.DeviceID,
			CreatedAt:   now,
		}

		// 2. Apply locally and append to the ledger
		if err := ledger.SetUnitStock(ctx, unit.ID, move.StockAfter, now); err != nil {
			return err
		}
		if err := ledger.CreateMove(ctx, move); err != nil {
			return err
		}

		// 3. Companion op carrying the same delta
		raw, err := json.Marshal(dto.StockMovePayload{
			MoveID:      move.MoveID,
			ProductUUID: move.ProductUUID,
			ProductCode: move.ProductCode,
			UnitLevel:   move.UnitLevel,
			UnitMark:    move.UnitMark,
			Delta:       move.Delta,
			Reason:      move.Reason,
			ReferenceID: move.ReferenceID,
			StockBefore: move.StockBefore,
			StockAfter:  move.StockAfter,
			DeviceID:    move.DeviceID,
		})
		if err != nil {
			return err
		}
		entityUUID := UnitEntityUUID(in.ProductUUID, in.UnitLevel, in.UnitMark)
		return repo.Create(ctx, newOperation(dc, model.OpStockMove, entityUUID, in.ProductCode, string(raw), now))
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue stock move: %w", err)
	}

	uc.logger.Debug("Enqueued stock move",
		zap.String("move_id", move.MoveID),
		zap.String("product_code", move.ProductCode),
		zap.Float64("delta", move.Delta),
		zap.Float64("stock_after", move.StockAfter),
	)
	return move.MoveID, nil
}

func (uc *outboxUseCase) EnqueueSale(ctx context.Context, dc device.Context, sale *model.Sale) (string, error) {
	if !dc.Valid() {
		return "", outbox.ErrMissingDevice
	}
	if sale.UUID == "" {
		return "", outbox.ErrMissingEntity
	}

	raw, err := json.Marshal(sale)
	if err != nil {
		return "", fmt.Errorf("failed to encode sale: %w", err)
	}

	op := newOperation(dc, model.OpSale, sale.UUID, sale.InvoiceNum, string(raw), uc.clock())
	if err := uc.repo.Create(ctx, op); err != nil {
		return "", fmt.Errorf("failed to enqueue sale: %w", err)
	}

	uc.logger.Debug("Enqueued sale", zap.String("op_id", op.OpID), zap.String("invoice_number", sale.InvoiceNum))
	return op.OpID, nil
}

func (uc *outboxUseCase) GetPendingOperations(ctx context.Context, filters *dto.PendingFilters) ([]model.SyncOperation, error) {
	if filters == nil {
		filters = &dto.PendingFilters{}
	}
	return uc.repo.ListPending(ctx, filters)
}

func (uc *outboxUseCase) MarkAsSent(ctx context.Context, opIDs []string) error {
	return uc.repo.MarkSent(ctx, opIDs, uc.clock())
}

func (uc *outboxUseCase) MarkAsAcked(ctx context.Context, opIDs []string) error {
	return uc.repo.MarkAcked(ctx, opIDs, uc.clock())
}

func (uc *outboxUseCase) MarkAsError(ctx context.Context, opID, message string) error {
	if err := uc.repo.MarkError(ctx, opID, message, uc.clock()); err != nil {
		return err
	}
	uc.logger.Warn("Operation rejected", zap.String("op_id", opID), zap.String("error", message))
	return nil
}

func (uc *outboxUseCase) RetryErrorOperations(ctx context.Context) (int64, error) {
	n, err := uc.repo.RetryErrors(ctx, uc.maxTries, uc.clock())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.logger.Info("Requeued error operations", zap.Int64("count", n), zap.Int("max_tries", uc.maxTries))
	}
	return n, nil
}

func (uc *outboxUseCase) Requeue(ctx context.Context, opIDs []string) (int64, error) {
	return uc.repo.Requeue(ctx, opIDs, uc.clock())
}

func (uc *outboxUseCase) ResetSent(ctx context.Context, opIDs []string) (int64, error) {
	return uc.repo.ResetSent(ctx, opIDs, uc.clock())
}

func (uc *outboxUseCase) RecoverInFlight(ctx context.Context) (int64, error) {
	n, err := uc.repo.RecoverSent(ctx, uc.clock())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.logger.Warn("Recovered operations left in flight", zap.Int64("count", n))
	}
	return n, nil
}

func (uc *outboxUseCase) MarkStockMovesSynced(ctx context.Context, moveIDs []string) error {
	return uc.ledger.MarkSynced(ctx, moveIDs, uc.clock())
}

func (uc *outboxUseCase) HasStockMovePending(ctx context.Context, key model.UnitKey) (bool, error) {
	return uc.ledger.HasUnsynced(ctx, key)
}

func (uc *outboxUseCase) GetPendingStockDelta(ctx context.Context, key model.UnitKey) (float64, error) {
	return uc.ledger.UnsyncedDelta(ctx, key)
}

func (uc *outboxUseCase) HasProductPending(ctx context.Context, code string) (bool, error) {
	return uc.repo.HasPendingByCode(ctx, model.OpProductPatch, code)
}

func (uc *outboxUseCase) HasUnitPatchPending(ctx context.Context, key model.UnitKey) (bool, error) {
	return uc.repo.HasUnitPatchPending(ctx, key)
}

func (uc *outboxUseCase) Stats(ctx context.Context) (*model.OutboxStats, error) {
	return uc.repo.Stats(ctx, uc.maxTries)
}

func newOperation(dc device.Context, opType model.OpType, entityUUID, entityCode, payload string, now time.Time) *model.SyncOperation {
	return &model.SyncOperation{
		OpID:       uuid.New().String(),
		OpType:     opType,
		EntityUUID: entityUUID,
		EntityCode: entityCode,
		Payload:    payload,
		DeviceID:   dc.DeviceID,
		Status:     model.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
