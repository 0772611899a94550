package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/product"
	"github.com/fekuna/omnipos-sync/internal/product/dto"
	"github.com/fekuna/omnipos-sync/internal/remote"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// groupProducts folds remote rows into one product per code, keeping the
// order codes first appear in. Rows come either as products carrying a
// units array or as one flat row per unit.
func groupProducts(rows []remote.Row) ([]*dto.RemoteProduct, int) {
	byCode := map[string]*dto.RemoteProduct{}
	var order []*dto.RemoteProduct
	skipped := 0

	for _, row := range rows {
		code := row.String("code", "product_code")
		if code == "" {
			skipped++
			continue
		}

		p, ok := byCode[code]
		if !ok {
			p = &dto.RemoteProduct{Code: code, IsActive: true}
			byCode[code] = p
			order = append(order, p)
		}
		if p.Name == "" {
			p.Name = row.String("name", "product_name")
		}
		p.IsActive = row.Bool(p.IsActive, "is_active")
		if at, ok := row.UpdatedAt(); ok && at.After(p.UpdatedAt) {
			p.UpdatedAt = at
		}

		if units, ok := row.Rows("units"); ok {
			if p.UUID == "" {
				p.UUID = row.String("uuid", "product_uuid")
			}
			for _, u := range units {
				p.Units = append(p.Units, remoteUnit(u, u.String("uuid", "unit_uuid")))
			}
			continue
		}

		// Flat rows describe a unit; a product uuid only comes explicitly.
		if p.UUID == "" {
			p.UUID = row.String("product_uuid")
		}
		p.Units = append(p.Units, remoteUnit(row, row.String("unit_uuid", "uuid")))
	}
	return order, skipped
}

func remoteUnit(row remote.Row, unitUUID string) dto.RemoteUnit {
	level := model.UnitPiece
	if raw := row.String("unit_level"); raw != "" {
		if l, ok := NormalizeUnitLevel(raw); ok {
			level = l
		} else {
			// Left as is so the product apply reports it.
			level = model.UnitLevel(strings.ToUpper(raw))
		}
	}

	u := dto.RemoteUnit{
		UUID:             unitUUID,
		LocalID:          row.Int("local_id", "_local_id"),
		UnitLevel:        level,
		UnitMark:         row.String("unit_mark"),
		PurchasePriceUSD: row.FloatOr(0, "purchase_price_usd"),
		SalePriceUSD:     row.FloatOr(0, "sale_price_usd"),
		AutoStockFactor:  row.FloatOr(1, "auto_stock_factor"),
		QtyStep:          row.FloatOr(1, "qty_step"),
	}
	if stock, ok := row.Float("stock_current", "stock_initial"); ok {
		u.Stock = &stock
	}
	if at, ok := row.Time("last_update"); ok {
		u.LastUpdate = &at
	}
	return u
}

func (a *Applier) applyProducts(ctx context.Context, rows []remote.Row, res *Result) error {
	grouped, skipped := groupProducts(rows)
	res.Skipped += skipped

	for _, rp := range grouped {
		outcome, err := a.applyProduct(ctx, rp)
		switch {
		case err != nil:
			res.Failed++
			a.logger.Error("Failed to apply remote product", zap.String("code", rp.Code), zap.Error(err))
		case outcome == nil:
			res.Skipped++
		case outcome.ProductCreated:
			res.Inserted++
		default:
			res.Updated++
		}
		if outcome != nil {
			res.Skipped += outcome.UnitsSkipped
			res.StockHeld += outcome.StockHeld
		}
	}
	return nil
}

// applyProduct decides the guards and applies rp in the same transaction so
// that no local edit can land between the check and the write. A nil result
// means the product was left alone.
func (a *Applier) applyProduct(ctx context.Context, rp *dto.RemoteProduct) (*dto.ApplyResult, error) {
	var outcome *dto.ApplyResult
	err := a.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		products := a.products.WithTx(tx)
		ob := a.outbox.WithTx(tx)

		// 1. A pending product patch wins over the whole remote product
		local, err := products.GetProduct(ctx, rp.Code)
		if err != nil && !errors.Is(err, product.ErrNotFound) {
			return err
		}
		var units []model.ProductUnit
		if local != nil {
			units = local.Units
			pending, err := ob.HasProductPending(ctx, rp.Code)
			if err != nil {
				return err
			}
			if pending {
				a.logger.Debug("Skipping product with pending patch", zap.String("code", rp.Code))
				return nil
			}
		}

		// 2. Per unit guards, keyed by the stored unit since the remote
		// mark may have changed
		for i := range rp.Units {
			u := &rp.Units[i]
			key := model.UnitKey{ProductCode: rp.Code, UnitLevel: u.UnitLevel, UnitMark: u.UnitMark}
			if target, err := product.ResolveUnit(units, *u); err == nil && target != nil {
				key.UnitLevel, key.UnitMark = target.UnitLevel, target.UnitMark
			}

			movePending, err := ob.HasStockMovePending(ctx, key)
			if err != nil {
				return err
			}
			patchPending, err := ob.HasUnitPatchPending(ctx, key)
			if err != nil {
				return err
			}
			u.KeepStock = movePending
			u.KeepPrices = patchPending

			if movePending && u.Stock != nil {
				delta, err := ob.GetPendingStockDelta(ctx, key)
				if err != nil {
					return err
				}
				a.logger.Info("Holding local stock until moves are acknowledged",
					zap.String("unit", key.String()),
					zap.Float64("remote_stock", *u.Stock),
					zap.Float64("pending_delta", delta),
				)
			}
		}

		// 3. Apply
		outcome, err = products.ApplyRemote(ctx, rp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}
