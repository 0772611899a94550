package settings

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// Get returns ok=false when the key was never written.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	DeletePrefix(ctx context.Context, prefix string) error

	WithTx(tx *sqlx.Tx) Repository
}
