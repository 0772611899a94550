package reconcile

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/remote"
	"github.com/fekuna/omnipos-sync/internal/sale"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// groupSales folds one-row-per-line remote data into sales keyed by invoice.
func groupSales(rows []remote.Row) ([]*model.Sale, int) {
	byInvoice := map[string]*model.Sale{}
	var order []*model.Sale
	skipped := 0

	for _, row := range rows {
		invoice := row.String("invoice_number")
		if invoice == "" {
			skipped++
			continue
		}

		s, ok := byInvoice[invoice]
		if !ok {
			s = &model.Sale{
				InvoiceNum:   invoice,
				ClientName:   row.String("client_name"),
				ClientPhone:  row.String("client_phone"),
				SellerName:   row.String("seller_name"),
				PaymentMode:  row.String("payment_mode"),
				Status:       row.String("status"),
				RateFCPerUSD: row.FloatOr(0, "rate_fc_per_usd", "exchange_rate"),
			}
			if s.PaymentMode == "" {
				s.PaymentMode = "cash"
			}
			if s.Status == "" {
				s.Status = "paid"
			}
			if at, ok := row.Time("sold_at", "created_at"); ok {
				s.SoldAt = at
				s.CreatedAt = at
			}
			byInvoice[invoice] = s
			order = append(order, s)
		}
		if s.UUID == "" {
			s.UUID = row.String("_sale_uuid", "sale_uuid")
		}

		code := row.String("product_code")
		if code == "" {
			skipped++
			continue
		}
		s.Items = append(s.Items, saleItem(row, code))
	}

	for _, s := range order {
		totalFC, totalUSD := decimal.Zero, decimal.Zero
		for _, it := range s.Items {
			totalFC = totalFC.Add(decimal.NewFromFloat(it.SubtotalFC))
			totalUSD = totalUSD.Add(decimal.NewFromFloat(it.SubtotalUSD))
		}
		s.TotalFC = totalFC.Round(0).InexactFloat64()
		s.TotalUSD = totalUSD.Round(2).InexactFloat64()
	}
	return order, skipped
}

func saleItem(row remote.Row, code string) model.SaleItem {
	// An unrecognised level stays empty and resolves to the product's unit.
	level, _ := NormalizeUnitLevel(row.String("unit_level"))

	qty := row.FloatOr(0, "qty", "quantity")
	it := model.SaleItem{
		UUID:         row.String("uuid", "item_uuid"),
		ProductCode:  code,
		ProductName:  row.String("product_name"),
		UnitLevel:    level,
		UnitMark:     row.String("unit_mark"),
		Qty:          qty,
		UnitPriceFC:  row.FloatOr(0, "unit_price_fc"),
		UnitPriceUSD: row.FloatOr(0, "unit_price_usd"),
	}

	q := decimal.NewFromFloat(qty)
	if v, ok := row.Float("subtotal_fc"); ok {
		it.SubtotalFC = v
	} else {
		it.SubtotalFC = q.Mul(decimal.NewFromFloat(it.UnitPriceFC)).Round(0).InexactFloat64()
	}
	if v, ok := row.Float("subtotal_usd"); ok {
		it.SubtotalUSD = v
	} else {
		it.SubtotalUSD = q.Mul(decimal.NewFromFloat(it.UnitPriceUSD)).Round(2).InexactFloat64()
	}
	return it
}

func (a *Applier) applySales(ctx context.Context, rows []remote.Row, res *Result) error {
	grouped, skipped := groupSales(rows)
	res.Skipped += skipped

	for _, s := range grouped {
		outcome, err := a.sales.ApplyRemote(ctx, s)
		switch {
		case errors.Is(err, sale.ErrUnknownProduct):
			res.Skipped++
			a.logger.Warn("Skipped remote sale with unknown products", zap.String("invoice_number", s.InvoiceNum))
		case err != nil:
			res.Failed++
			a.logger.Error("Failed to apply remote sale", zap.String("invoice_number", s.InvoiceNum), zap.Error(err))
		case outcome.SkippedLocal:
			res.Skipped++
		case outcome.Created:
			res.Inserted++
		default:
			res.Updated++
		}
	}
	return nil
}
