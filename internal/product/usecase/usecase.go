package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/device"
	"github.com/fekuna/omnipos-sync/internal/inventory"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	outboxdto "github.com/fekuna/omnipos-sync/internal/outbox/dto"
	"github.com/fekuna/omnipos-sync/internal/product"
	"github.com/fekuna/omnipos-sync/internal/product/dto"
	"github.com/fekuna/omnipos-sync/internal/rate"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type productUseCase struct {
	repo   product.Repository
	ledger inventory.Repository
	rates  rate.Repository
	outbox outbox.UseCase
	txm    sqlite.TxManager
	logger logger.ZapLogger
}

func NewProductUseCase(
	repo product.Repository,
	ledger inventory.Repository,
	rates rate.Repository,
	ob outbox.UseCase,
	txm sqlite.TxManager,
	log logger.ZapLogger,
) product.UseCase {
	return &productUseCase{
		repo:   repo,
		ledger: ledger,
		rates:  rates,
		outbox: ob,
		txm:    txm,
		logger: log,
	}
}

func (uc *productUseCase) WithTx(tx *sqlx.Tx) product.UseCase {
	return &productUseCase{
		repo:   uc.repo.WithTx(tx),
		ledger: uc.ledger.WithTx(tx),
		rates:  uc.rates.WithTx(tx),
		outbox: uc.outbox.WithTx(tx),
		txm:    sqlite.BoundTx(tx),
		logger: uc.logger,
	}
}

func (uc *productUseCase) GetProduct(ctx context.Context, code string) (*model.Product, error) {
	p, err := uc.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, product.ErrNotFound
	}

	units, err := uc.repo.ListUnits(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Units = units
	return p, nil
}

func (uc *productUseCase) ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error) {
	if filters == nil {
		filters = &dto.ProductFilters{}
	}
	return uc.repo.FindAll(ctx, filters)
}

func (uc *productUseCase) CountProducts(ctx context.Context) (int, error) {
	return uc.repo.Count(ctx)
}

func (uc *productUseCase) UpdateProduct(ctx context.Context, dc device.Context, code string, patch outboxdto.ProductPatch) (*model.Product, error) {
	if patch.IsEmpty() {
		return nil, outbox.ErrEmptyPatch
	}

	var updated *model.Product
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)

		p, err := repo.FindByCode(ctx, code)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: %s", product.ErrNotFound, code)
		}

		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.IsActive != nil {
			p.IsActive = *patch.IsActive
		}
		p.UpdatedAt = time.Now().UTC()

		if err := repo.Update(ctx, p); err != nil {
			return err
		}
		if _, err := uc.outbox.WithTx(tx).EnqueueProductPatch(ctx, dc, p.UUID, p.Code, patch); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (uc *productUseCase) UpdateUnit(ctx context.Context, dc device.Context, key model.UnitKey, patch outboxdto.UnitPatch) (*model.ProductUnit, error) {
	if patch.IsEmpty() {
		return nil, outbox.ErrEmptyPatch
	}

	var updated *model.ProductUnit
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)

		p, err := repo.FindByCode(ctx, key.ProductCode)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: %s", product.ErrNotFound, key.ProductCode)
		}

		units, err := repo.ListUnits(ctx, p.ID)
		if err != nil {
			return err
		}
		var unit *model.ProductUnit
		for i := range units {
			if units[i].UnitLevel == key.UnitLevel && units[i].UnitMark == key.UnitMark {
				unit = &units[i]
				break
			}
		}
		if unit == nil {
			return fmt.Errorf("%w: %s", inventory.ErrUnitNotFound, key)
		}

		rateFC, err := uc.rates.WithTx(tx).Current(ctx)
		if err != nil {
			return err
		}

		if patch.SalePriceUSD != nil {
			unit.SalePriceUSD = *patch.SalePriceUSD
		}
		if patch.PurchasePriceUSD != nil {
			unit.PurchasePriceUSD = *patch.PurchasePriceUSD
		}
		if patch.AutoStockFactor != nil {
			unit.AutoStockFactor = *patch.AutoStockFactor
		}
		if patch.QtyStep != nil {
			unit.QtyStep = *patch.QtyStep
		}
		unit.SalePriceFC = product.SalePriceFC(unit.SalePriceUSD, rateFC)
		unit.UpdatedAt = time.Now().UTC()

		if err := repo.UpdateUnit(ctx, unit); err != nil {
			return err
		}
		if _, err := uc.outbox.WithTx(tx).EnqueueUnitPatch(ctx, dc, p.UUID, p.Code, unit.UnitLevel, unit.UnitMark, patch); err != nil {
			return err
		}
		updated = unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (uc *productUseCase) ApplyRemote(ctx context.Context, in *dto.RemoteProduct) (*dto.ApplyResult, error) {
	if in.Code == "" {
		return nil, product.ErrEmptyCode
	}

	res := &dto.ApplyResult{}
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)
		now := time.Now().UTC()

		rateFC, err := uc.rates.WithTx(tx).Current(ctx)
		if err != nil {
			return err
		}

		// 1. Product row, by code then uuid
		p, err := repo.FindByCode(ctx, in.Code)
		if err != nil {
			return err
		}
		if p == nil && in.UUID != "" {
			if p, err = repo.FindByUUID(ctx, in.UUID); err != nil {
				return err
			}
		}

		if p == nil {
			p = &model.Product{
				UUID:      in.UUID,
				Code:      in.Code,
				Name:      in.Name,
				IsActive:  in.IsActive,
				Origin:    model.OriginRemote,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if p.UUID == "" {
				p.UUID = uuid.New().String()
			}
			if err := repo.Create(ctx, p); err != nil {
				return err
			}
			res.ProductCreated = true
		} else {
			if in.UUID != "" {
				p.UUID = in.UUID
			}
			p.Code = in.Code
			if in.Name != "" {
				p.Name = in.Name
			}
			p.IsActive = in.IsActive
			p.UpdatedAt = now
			if err := repo.Update(ctx, p); err != nil {
				return err
			}
			res.ProductUpdated = true
		}

		// 2. Units
		units, err := repo.ListUnits(ctx, p.ID)
		if err != nil {
			return err
		}
		seq, err := uc.ledger.WithTx(tx).LastMoveSeq(ctx)
		if err != nil {
			return err
		}

		for _, ru := range in.Units {
			if !ru.UnitLevel.Valid() {
				res.UnitsSkipped++
				res.UnitErrors = append(res.UnitErrors, fmt.Errorf("unknown unit level %q on %s", ru.UnitLevel, in.Code))
				continue
			}

			target, err := product.ResolveUnit(units, ru)
			if err != nil {
				res.UnitsSkipped++
				res.UnitErrors = append(res.UnitErrors, fmt.Errorf("%w: %s %s/%s", err, in.Code, ru.UnitLevel, ru.UnitMark))
				continue
			}

			if target == nil {
				unit := newUnit(p.ID, ru, rateFC, seq, now)
				if err := repo.CreateUnit(ctx, unit); err != nil {
					return err
				}
				units = append(units, *unit)
				res.UnitsInserted++
				continue
			}

			if ru.KeepStock && ru.Stock != nil && *ru.Stock != target.StockCurrent {
				res.StockHeld++
			}
			applyRemoteUnit(target, ru, rateFC, seq, now)
			if err := repo.UpdateUnit(ctx, target); err != nil {
				return err
			}
			res.UnitsUpdated++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply product %s: %w", in.Code, err)
	}

	for _, uerr := range res.UnitErrors {
		uc.logger.Warn("Skipped remote unit", zap.String("code", in.Code), zap.Error(uerr))
	}
	return res, nil
}

func newUnit(productID int64, ru dto.RemoteUnit, rateFC float64, seq int64, now time.Time) *model.ProductUnit {
	unit := &model.ProductUnit{
		UUID:             ru.UUID,
		ProductID:        productID,
		UnitLevel:        ru.UnitLevel,
		UnitMark:         ru.UnitMark,
		BaselineMoveSeq:  seq,
		PurchasePriceUSD: ru.PurchasePriceUSD,
		SalePriceUSD:     ru.SalePriceUSD,
		SalePriceFC:      product.SalePriceFC(ru.SalePriceUSD, rateFC),
		AutoStockFactor:  orDefault(ru.AutoStockFactor, 1),
		QtyStep:          orDefault(ru.QtyStep, 1),
		LastUpdate:       ru.LastUpdate,
		UpdatedAt:        now,
	}
	if unit.UUID == "" {
		unit.UUID = uuid.New().String()
		unit.UUIDProvisional = true
	}
	if ru.Stock != nil {
		unit.StockInitial = *ru.Stock
		unit.StockCurrent = *ru.Stock
	}
	return unit
}

func applyRemoteUnit(unit *model.ProductUnit, ru dto.RemoteUnit, rateFC float64, seq int64, now time.Time) {
	if ru.UUID != "" {
		unit.UUID = ru.UUID
		unit.UUIDProvisional = false
	}
	unit.UnitLevel = ru.UnitLevel
	// Pending local writes are keyed by the current mark; a rename waits.
	if !ru.KeepStock && !ru.KeepPrices {
		unit.UnitMark = ru.UnitMark
	}

	if !ru.KeepPrices {
		unit.PurchasePriceUSD = ru.PurchasePriceUSD
		unit.SalePriceUSD = ru.SalePriceUSD
		unit.AutoStockFactor = orDefault(ru.AutoStockFactor, unit.AutoStockFactor)
		unit.QtyStep = orDefault(ru.QtyStep, unit.QtyStep)
	}
	if ru.Stock != nil && !ru.KeepStock {
		unit.StockInitial = *ru.Stock
		unit.StockCurrent = *ru.Stock
		unit.BaselineMoveSeq = seq
	}

	unit.SalePriceFC = product.SalePriceFC(unit.SalePriceUSD, rateFC)
	if ru.LastUpdate != nil {
		unit.LastUpdate = ru.LastUpdate
	}
	unit.UpdatedAt = now
}

func (uc *productUseCase) RecomputePrices(ctx context.Context, rateFC float64) (int, error) {
	if rateFC <= 0 {
		return 0, fmt.Errorf("invalid rate %v", rateFC)
	}

	changed := 0
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)

		units, err := repo.ListAllUnits(ctx)
		if err != nil {
			return err
		}
		for _, u := range units {
			price := product.SalePriceFC(u.SalePriceUSD, rateFC)
			if price == u.SalePriceFC {
				continue
			}
			if err := repo.UpdateUnitPriceFC(ctx, u.ID, price); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	uc.logger.Info("Recomputed unit prices", zap.Float64("rate", rateFC), zap.Int("changed", changed))
	return changed, nil
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
