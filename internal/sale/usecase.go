package sale

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-sync/internal/device"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/sale/dto"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound       = errors.New("sale not found")
	ErrUnknownProduct = errors.New("sale references an unknown product")
	ErrMissingInvoice = errors.New("sale has no invoice number")
	ErrNoItems        = errors.New("sale has no items")
	ErrDuplicate      = errors.New("invoice number already recorded")
)

type UseCase interface {
	// RecordSale stores a local sale, its stock moves and its SALE operation
	// in one transaction.
	RecordSale(ctx context.Context, dc device.Context, input *dto.RecordSaleInput) (*model.Sale, error)
	GetSale(ctx context.Context, invoice string) (*model.Sale, error)
	ListRecent(ctx context.Context, limit int) ([]model.Sale, error)

	// ApplyRemote inserts or replaces a remote sale. LOCAL sales are never
	// overwritten.
	ApplyRemote(ctx context.Context, remote *model.Sale) (*dto.ApplyResult, error)

	WithTx(tx *sqlx.Tx) UseCase
}
