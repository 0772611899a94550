package reconcile

import (
	"context"

	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/remote"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func remoteDebt(row remote.Row) *model.Debt {
	d := &model.Debt{
		UUID:               row.String("uuid", "_debt_uuid"),
		InvoiceNum:         row.String("invoice_number"),
		ClientName:         row.String("client_name"),
		ClientPhone:        row.String("client_phone"),
		ProductDescription: row.String("product_description"),
		TotalFC:            row.FloatOr(0, "total_fc"),
		PaidFC:             row.FloatOr(0, "paid_fc"),
		TotalUSD:           row.FloatOr(0, "total_usd"),
		Note:               row.String("note"),
		Status:             row.String("status"),
	}
	if v, ok := row.Float("remaining_fc"); ok {
		d.RemainingFC = v
	} else {
		d.RemainingFC = decimal.NewFromFloat(d.TotalFC).Sub(decimal.NewFromFloat(d.PaidFC)).InexactFloat64()
	}
	if at, ok := row.Time("created_at", "date"); ok {
		d.CreatedAt = at
	}
	return d
}

func (a *Applier) applyDebts(ctx context.Context, rows []remote.Row, res *Result) error {
	for _, row := range rows {
		d := remoteDebt(row)
		// Nothing to identify the debt by.
		if d.UUID == "" && d.InvoiceNum == "" && d.ClientName == "" {
			res.Skipped++
			continue
		}

		created, err := a.debts.ApplyRemote(ctx, d)
		switch {
		case err != nil:
			res.Failed++
			a.logger.Error("Failed to apply remote debt",
				zap.String("uuid", d.UUID),
				zap.String("invoice_number", d.InvoiceNum),
				zap.Error(err),
			)
		case created:
			res.Inserted++
		default:
			res.Updated++
		}
	}
	return nil
}
