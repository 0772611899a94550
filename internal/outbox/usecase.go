package outbox

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-sync/internal/device"
	invdto "github.com/fekuna/omnipos-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/outbox/dto"
	"github.com/jmoiron/sqlx"
)

// DefaultMaxTries is how many rejections an operation absorbs before it
// stays in error until requeued by hand.
const DefaultMaxTries = 3

var (
	ErrEmptyPatch    = errors.New("patch has no fields set")
	ErrMissingDevice = errors.New("device context has no device id")
	ErrMissingEntity = errors.New("entity uuid is required")
)

type UseCase interface {
	// Producers
	EnqueueProductPatch(ctx context.Context, dc device.Context, entityUUID, entityCode string, patch dto.ProductPatch) (string, error)
	EnqueueUnitPatch(ctx context.Context, dc device.Context, productUUID, productCode string, level model.UnitLevel, mark string, patch dto.UnitPatch) (string, error)
	// EnqueueStockMove records the move and its STOCK_MOVE operation and
	// returns the move id.
	EnqueueStockMove(ctx context.Context, dc device.Context, input *invdto.StockMoveInput) (string, error)
	EnqueueSale(ctx context.Context, dc device.Context, sale *model.Sale) (string, error)

	// Consumers
	GetPendingOperations(ctx context.Context, filters *dto.PendingFilters) ([]model.SyncOperation, error)
	MarkAsSent(ctx context.Context, opIDs []string) error
	MarkAsAcked(ctx context.Context, opIDs []string) error
	MarkAsError(ctx context.Context, opID, message string) error
	RetryErrorOperations(ctx context.Context) (int64, error)
	Requeue(ctx context.Context, opIDs []string) (int64, error)
	ResetSent(ctx context.Context, opIDs []string) (int64, error)
	RecoverInFlight(ctx context.Context) (int64, error)
	MarkStockMovesSynced(ctx context.Context, moveIDs []string) error

	// Guards used while applying remote rows
	HasStockMovePending(ctx context.Context, key model.UnitKey) (bool, error)
	GetPendingStockDelta(ctx context.Context, key model.UnitKey) (float64, error)
	HasProductPending(ctx context.Context, code string) (bool, error)
	HasUnitPatchPending(ctx context.Context, key model.UnitKey) (bool, error)

	Stats(ctx context.Context) (*model.OutboxStats, error)

	WithTx(tx *sqlx.Tx) UseCase
}
