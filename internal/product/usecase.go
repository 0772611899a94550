package product

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-sync/internal/device"
	"github.com/fekuna/omnipos-sync/internal/model"
	outboxdto "github.com/fekuna/omnipos-sync/internal/outbox/dto"
	"github.com/fekuna/omnipos-sync/internal/product/dto"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateUnit means another unit already holds the incoming level on
	// the product.
	ErrDuplicateUnit = errors.New("duplicate product unit")
	ErrEmptyCode     = errors.New("product code is empty")
)

type UseCase interface {
	GetProduct(ctx context.Context, code string) (*model.Product, error)
	ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
	CountProducts(ctx context.Context) (int, error)

	// Local edits, each recorded in the outbox
	UpdateProduct(ctx context.Context, dc device.Context, code string, patch outboxdto.ProductPatch) (*model.Product, error)
	UpdateUnit(ctx context.Context, dc device.Context, key model.UnitKey, patch outboxdto.UnitPatch) (*model.ProductUnit, error)

	// Remote apply
	ApplyRemote(ctx context.Context, in *dto.RemoteProduct) (*dto.ApplyResult, error)
	RecomputePrices(ctx context.Context, rate float64) (int, error)

	WithTx(tx *sqlx.Tx) UseCase
}
