package debt

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, debt *model.Debt) error
	Update(ctx context.Context, debt *model.Debt) error
	FindByUUID(ctx context.Context, uuid string) (*model.Debt, error)
	FindByInvoice(ctx context.Context, invoice string) (*model.Debt, error)
	List(ctx context.Context, openOnly bool, limit int) ([]model.Debt, error)

	// Identity mapping for rows the remote sends without a uuid
	FindIdentity(ctx context.Context, stableKey string) (string, bool, error)
	SaveIdentity(ctx context.Context, stableKey, debtUUID string, at time.Time) error

	WithTx(tx *sqlx.Tx) Repository
}
