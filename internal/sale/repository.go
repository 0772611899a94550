package sale

import (
	"context"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, sale *model.Sale) error
	Update(ctx context.Context, sale *model.Sale) error
	FindByInvoice(ctx context.Context, invoice string) (*model.Sale, error)
	FindRecent(ctx context.Context, limit int) ([]model.Sale, error)

	// Items
	CreateItem(ctx context.Context, item *model.SaleItem) error
	ListItems(ctx context.Context, saleID int64) ([]model.SaleItem, error)
	DeleteItems(ctx context.Context, saleID int64) error

	WithTx(tx *sqlx.Tx) Repository
}
