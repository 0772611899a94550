package rate

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// Current returns the FC-per-USD rate used to derive local prices.
	Current(ctx context.Context) (float64, error)
	SetCurrent(ctx context.Context, rate float64, effectiveAt time.Time, source model.Origin) error
	History(ctx context.Context, limit int) ([]model.ExchangeRate, error)

	WithTx(tx *sqlx.Tx) Repository
}
