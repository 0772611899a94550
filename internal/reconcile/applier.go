// Package reconcile turns pulled remote rows into local writes without
// clobbering edits that are still waiting in the outbox.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/debt"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	"github.com/fekuna/omnipos-sync/internal/product"
	"github.com/fekuna/omnipos-sync/internal/rate"
	"github.com/fekuna/omnipos-sync/internal/remote"
	"github.com/fekuna/omnipos-sync/internal/sale"
	"github.com/fekuna/omnipos-sync/internal/user"
	"go.uber.org/zap"
)

var ErrUnknownEntity = errors.New("unknown entity")

// Result counts what one Apply call did with its rows.
type Result struct {
	Entity    string `json:"entity"`
	Rows      int    `json:"rows"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	StockHeld int    `json:"stock_held,omitempty"` // Remote stock ignored for pending moves
}

func (r *Result) Applied() int {
	return r.Inserted + r.Updated
}

type Applier struct {
	products product.UseCase
	sales    sale.UseCase
	debts    debt.UseCase
	users    user.UseCase
	rates    rate.Repository
	outbox   outbox.UseCase
	txm      sqlite.TxManager
	logger   logger.ZapLogger
}

func NewApplier(
	products product.UseCase,
	sales sale.UseCase,
	debts debt.UseCase,
	users user.UseCase,
	rates rate.Repository,
	ob outbox.UseCase,
	txm sqlite.TxManager,
	log logger.ZapLogger,
) *Applier {
	return &Applier{
		products: products,
		sales:    sales,
		debts:    debts,
		users:    users,
		rates:    rates,
		outbox:   ob,
		txm:      txm,
		logger:   log,
	}
}

// Apply writes rows of one entity. Per-row failures are logged and counted;
// the returned error is reserved for problems that stop the whole entity.
func (a *Applier) Apply(ctx context.Context, entity string, rows []remote.Row) (*Result, error) {
	res := &Result{Entity: entity, Rows: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}

	var err error
	switch entity {
	case remote.EntityProducts:
		err = a.applyProducts(ctx, rows, res)
	case remote.EntitySales:
		err = a.applySales(ctx, rows, res)
	case remote.EntityDebts:
		err = a.applyDebts(ctx, rows, res)
	case remote.EntityRates:
		err = a.applyRates(ctx, rows, res)
	case remote.EntityUsers:
		err = a.applyUsers(ctx, rows, res)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	if err != nil {
		return res, err
	}

	a.logger.Info("Applied remote rows",
		zap.String("entity", entity),
		zap.Int("rows", res.Rows),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Int("stock_held", res.StockHeld),
	)
	return res, nil
}
