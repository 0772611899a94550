package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/remote"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// latestRate picks the newest usable rate row. Later rows win ties.
func latestRate(rows []remote.Row) (float64, time.Time, bool) {
	var (
		best   float64
		bestAt time.Time
		found  bool
	)
	for _, row := range rows {
		v, ok := row.Float("rate_fc_per_usd", "rate", "taux")
		if !ok || v <= 0 {
			continue
		}
		at, _ := row.Time("effective_at", "date", "created_at")
		if !found || !at.Before(bestAt) {
			best, bestAt, found = v, at, true
		}
	}
	return best, bestAt, found
}

// applyRates stores the newest rate and reprices every unit with it in one
// transaction.
func (a *Applier) applyRates(ctx context.Context, rows []remote.Row, res *Result) error {
	rateFC, at, ok := latestRate(rows)
	if !ok {
		res.Skipped += len(rows)
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var repriced int
	err := a.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := a.rates.WithTx(tx).SetCurrent(ctx, rateFC, at, model.OriginRemote); err != nil {
			return err
		}
		var err error
		repriced, err = a.products.WithTx(tx).RecomputePrices(ctx, rateFC)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to apply remote rate: %w", err)
	}

	res.Updated++
	res.Skipped += len(rows) - 1
	a.logger.Info("Exchange rate updated from remote", zap.Float64("rate_fc_per_usd", rateFC), zap.Time("effective_at", at), zap.Int("units_repriced", repriced))
	return nil
}
