package outbox

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/outbox/dto"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, op *model.SyncOperation) error
	FindByOpID(ctx context.Context, opID string) (*model.SyncOperation, error)
	// FindPending returns the pending operation of opType for entityUUID, or nil.
	FindPending(ctx context.Context, opType model.OpType, entityUUID string) (*model.SyncOperation, error)
	UpdatePayload(ctx context.Context, opID, payload, entityCode string, at time.Time) error
	ListPending(ctx context.Context, filters *dto.PendingFilters) ([]model.SyncOperation, error)

	// Status transitions
	MarkSent(ctx context.Context, opIDs []string, at time.Time) error
	MarkAcked(ctx context.Context, opIDs []string, at time.Time) error
	MarkError(ctx context.Context, opID, message string, at time.Time) error
	ResetSent(ctx context.Context, opIDs []string, at time.Time) (int64, error)
	RecoverSent(ctx context.Context, at time.Time) (int64, error)
	RetryErrors(ctx context.Context, maxTries int, at time.Time) (int64, error)
	Requeue(ctx context.Context, opIDs []string, at time.Time) (int64, error)

	HasPendingByCode(ctx context.Context, opType model.OpType, entityCode string) (bool, error)
	HasUnitPatchPending(ctx context.Context, key model.UnitKey) (bool, error)
	Stats(ctx context.Context, maxTries int) (*model.OutboxStats, error)

	WithTx(tx *sqlx.Tx) Repository
}
