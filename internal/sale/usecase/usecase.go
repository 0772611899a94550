package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/device"
	"github.com/fekuna/omnipos-sync/internal/inventory"
	invdto "github.com/fekuna/omnipos-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	"github.com/fekuna/omnipos-sync/internal/product"
	"github.com/fekuna/omnipos-sync/internal/rate"
	"github.com/fekuna/omnipos-sync/internal/sale"
	"github.com/fekuna/omnipos-sync/internal/sale/dto"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type saleUseCase struct {
	repo     sale.Repository
	products product.Repository
	rates    rate.Repository
	outbox   outbox.UseCase
	txm      sqlite.TxManager
	logger   logger.ZapLogger
}

func NewSaleUseCase(
	repo sale.Repository,
	products product.Repository,
	rates rate.Repository,
	ob outbox.UseCase,
	txm sqlite.TxManager,
	log logger.ZapLogger,
) sale.UseCase {
	return &saleUseCase{
		repo:     repo,
		products: products,
		rates:    rates,
		outbox:   ob,
		txm:      txm,
		logger:   log,
	}
}

func (uc *saleUseCase) WithTx(tx *sqlx.Tx) sale.UseCase {
	return &saleUseCase{
		repo:     uc.repo.WithTx(tx),
		products: uc.products.WithTx(tx),
		rates:    uc.rates.WithTx(tx),
		outbox:   uc.outbox.WithTx(tx),
		txm:      sqlite.BoundTx(tx),
		logger:   uc.logger,
	}
}

func (uc *saleUseCase) RecordSale(ctx context.Context, dc device.Context, in *dto.RecordSaleInput) (*model.Sale, error) {
	if in.InvoiceNum == "" {
		return nil, sale.ErrMissingInvoice
	}
	if len(in.Items) == 0 {
		return nil, sale.ErrNoItems
	}

	var recorded *model.Sale
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)
		products := uc.products.WithTx(tx)
		now := time.Now().UTC()

		// 1. Invoice numbers are unique
		existing, err := repo.FindByInvoice(ctx, in.InvoiceNum)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", sale.ErrDuplicate, in.InvoiceNum)
		}

		rateFC, err := uc.rates.WithTx(tx).Current(ctx)
		if err != nil {
			return err
		}

		paymentMode := in.PaymentMode
		if paymentMode == "" {
			paymentMode = "cash"
		}

		s := &model.Sale{
			UUID:         uuid.New().String(),
			InvoiceNum:   in.InvoiceNum,
			SoldAt:       now,
			ClientName:   in.ClientName,
			ClientPhone:  in.ClientPhone,
			SellerName:   in.SellerName,
			RateFCPerUSD: rateFC,
			PaymentMode:  paymentMode,
			Status:       "paid",
			Origin:       model.OriginLocal,
			DeviceID:     dc.DeviceID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		// 2. Price every line from the local unit
		type line struct {
			item        model.SaleItem
			productUUID string
		}
		lines := make([]line, 0, len(in.Items))
		totalFC := decimal.Zero
		totalUSD := decimal.Zero

		for _, it := range in.Items {
			if it.Qty <= 0 {
				return fmt.Errorf("invalid quantity %v for %s", it.Qty, it.ProductCode)
			}

			p, err := products.FindByCode(ctx, it.ProductCode)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("%w: %s", sale.ErrUnknownProduct, it.ProductCode)
			}
			units, err := products.ListUnits(ctx, p.ID)
			if err != nil {
				return err
			}
			var unit *model.ProductUnit
			for i := range units {
				if units[i].UnitLevel == it.UnitLevel && units[i].UnitMark == it.UnitMark {
					unit = &units[i]
					break
				}
			}
			if unit == nil {
				return fmt.Errorf("%w: %s/%s/%s", inventory.ErrUnitNotFound, it.ProductCode, it.UnitLevel, it.UnitMark)
			}

			qty := decimal.NewFromFloat(it.Qty)
			subFC := qty.Mul(decimal.NewFromFloat(unit.SalePriceFC)).Round(0)
			subUSD := qty.Mul(decimal.NewFromFloat(unit.SalePriceUSD)).Round(2)
			totalFC = totalFC.Add(subFC)
			totalUSD = totalUSD.Add(subUSD)

			lines = append(lines, line{
				productUUID: p.UUID,
				item: model.SaleItem{
					UUID:         uuid.New().String(),
					ProductID:    p.ID,
					ProductCode:  p.Code,
					ProductName:  p.Name,
					UnitLevel:    unit.UnitLevel,
					UnitMark:     unit.UnitMark,
					Qty:          it.Qty,
					UnitPriceFC:  unit.SalePriceFC,
					UnitPriceUSD: unit.SalePriceUSD,
					SubtotalFC:   subFC.InexactFloat64(),
					SubtotalUSD:  subUSD.InexactFloat64(),
				},
			})
		}
		s.TotalFC = totalFC.InexactFloat64()
		s.TotalUSD = totalUSD.InexactFloat64()

		// 3. Persist sale and items
		if err := repo.Create(ctx, s); err != nil {
			return err
		}
		for i := range lines {
			lines[i].item.SaleID = s.ID
			if err := repo.CreateItem(ctx, &lines[i].item); err != nil {
				return err
			}
			s.Items = append(s.Items, lines[i].item)
		}

		// 4. One stock move per line, then the SALE op
		ob := uc.outbox.WithTx(tx)
		for _, l := range lines {
			if _, err := ob.EnqueueStockMove(ctx, dc, &invdto.StockMoveInput{
				ProductUUID: l.productUUID,
				ProductCode: l.item.ProductCode,
				UnitLevel:   l.item.UnitLevel,
				UnitMark:    l.item.UnitMark,
				Delta:       -l.item.Qty,
				Reason:      model.ReasonSale,
				ReferenceID: s.InvoiceNum,
			}); err != nil {
				return err
			}
		}
		if _, err := ob.EnqueueSale(ctx, dc, s); err != nil {
			return err
		}

		recorded = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record sale %s: %w", in.InvoiceNum, err)
	}

	uc.logger.Info("Sale recorded",
		zap.String("invoice_number", recorded.InvoiceNum),
		zap.Int("items", len(recorded.Items)),
		zap.Float64("total_fc", recorded.TotalFC),
	)
	return recorded, nil
}

func (uc *saleUseCase) GetSale(ctx context.Context, invoice string) (*model.Sale, error) {
	s, err := uc.repo.FindByInvoice(ctx, invoice)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, sale.ErrNotFound
	}
	items, err := uc.repo.ListItems(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Items = items
	return s, nil
}

func (uc *saleUseCase) ListRecent(ctx context.Context, limit int) ([]model.Sale, error) {
	return uc.repo.FindRecent(ctx, limit)
}

func (uc *saleUseCase) ApplyRemote(ctx context.Context, remote *model.Sale) (*dto.ApplyResult, error) {
	if remote.InvoiceNum == "" {
		return nil, sale.ErrMissingInvoice
	}

	res := &dto.ApplyResult{}
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)
		products := uc.products.WithTx(tx)
		now := time.Now().UTC()

		existing, err := repo.FindByInvoice(ctx, remote.InvoiceNum)
		if err != nil {
			return err
		}
		if existing != nil && existing.Origin == model.OriginLocal {
			res.SkippedLocal = true
			return nil
		}

		// 1. Resolve lines against the local catalogue
		items := make([]model.SaleItem, 0, len(remote.Items))
		for _, it := range remote.Items {
			p, err := products.FindByCode(ctx, it.ProductCode)
			if err != nil {
				return err
			}
			if p == nil {
				res.ItemsSkipped++
				continue
			}
			// Lines without a recognised unit take the product's first unit.
			if it.UnitLevel == "" {
				units, err := products.ListUnits(ctx, p.ID)
				if err != nil {
					return err
				}
				if len(units) == 0 {
					res.ItemsSkipped++
					continue
				}
				it.UnitLevel, it.UnitMark = units[0].UnitLevel, units[0].UnitMark
			}
			it.ProductID = p.ID
			if it.ProductName == "" {
				it.ProductName = p.Name
			}
			if it.UUID == "" {
				it.UUID = uuid.New().String()
			}
			items = append(items, it)
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: invoice %s", sale.ErrUnknownProduct, remote.InvoiceNum)
		}

		// 2. Header
		s := *remote
		s.Items = nil
		s.Origin = model.OriginRemote
		s.UpdatedAt = now
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.SoldAt.IsZero() {
			s.SoldAt = s.CreatedAt
		}

		if existing == nil {
			if s.UUID == "" {
				s.UUID = uuid.New().String()
			}
			if err := repo.Create(ctx, &s); err != nil {
				return err
			}
			res.Created = true
		} else {
			s.ID = existing.ID
			if s.UUID == "" {
				s.UUID = existing.UUID
			}
			if err := repo.Update(ctx, &s); err != nil {
				return err
			}
			if err := repo.DeleteItems(ctx, s.ID); err != nil {
				return err
			}
			res.Replaced = true
		}

		// 3. Items
		for i := range items {
			items[i].SaleID = s.ID
			if err := repo.CreateItem(ctx, &items[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
