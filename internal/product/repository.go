package product

import (
	"context"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/product/dto"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByCode(ctx context.Context, code string) (*model.Product, error)
	FindByUUID(ctx context.Context, uuid string) (*model.Product, error)
	FindAll(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
	Update(ctx context.Context, product *model.Product) error
	Count(ctx context.Context) (int, error)

	// Unit ops
	ListUnits(ctx context.Context, productID int64) ([]model.ProductUnit, error)
	ListAllUnits(ctx context.Context) ([]model.ProductUnit, error)
	CreateUnit(ctx context.Context, unit *model.ProductUnit) error
	UpdateUnit(ctx context.Context, unit *model.ProductUnit) error
	UpdateUnitPriceFC(ctx context.Context, unitID int64, priceFC float64) error

	WithTx(tx *sqlx.Tx) Repository
}
