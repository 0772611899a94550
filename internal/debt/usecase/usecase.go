package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/debt"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type debtUseCase struct {
	repo   debt.Repository
	txm    sqlite.TxManager
	logger logger.ZapLogger
}

func NewDebtUseCase(repo debt.Repository, txm sqlite.TxManager, log logger.ZapLogger) debt.UseCase {
	return &debtUseCase{
		repo:   repo,
		txm:    txm,
		logger: log,
	}
}

func (uc *debtUseCase) WithTx(tx *sqlx.Tx) debt.UseCase {
	return &debtUseCase{
		repo:   uc.repo.WithTx(tx),
		txm:    sqlite.BoundTx(tx),
		logger: uc.logger,
	}
}

func (uc *debtUseCase) ApplyRemote(ctx context.Context, remote *model.Debt) (bool, error) {
	created := false
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)
		now := time.Now().UTC()
		d := *remote

		// 1. Resolve identity: uuid, invoice, stable key
		var existing *model.Debt
		var err error
		if d.UUID != "" {
			if existing, err = repo.FindByUUID(ctx, d.UUID); err != nil {
				return err
			}
		}
		if existing == nil && d.InvoiceNum != "" {
			if existing, err = repo.FindByInvoice(ctx, d.InvoiceNum); err != nil {
				return err
			}
		}
		if existing == nil && d.UUID == "" {
			key := debt.StableKey(&d)
			mapped, ok, err := repo.FindIdentity(ctx, key)
			if err != nil {
				return err
			}
			if !ok {
				mapped = uuid.New().String()
				if err := repo.SaveIdentity(ctx, key, mapped, now); err != nil {
					return err
				}
			}
			d.UUID = mapped
			if existing, err = repo.FindByUUID(ctx, mapped); err != nil {
				return err
			}
		}

		if d.Status == "" {
			d.Status = debt.StatusOpen
			if d.RemainingFC <= 0 && d.TotalFC > 0 {
				d.Status = debt.StatusPaid
			}
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		d.UpdatedAt = now

		// 2. Upsert with remote financials
		if existing == nil {
			if d.UUID == "" {
				d.UUID = uuid.New().String()
			}
			if err := repo.Create(ctx, &d); err != nil {
				return err
			}
			created = true
			return nil
		}

		d.ID = existing.ID
		if d.UUID == "" {
			d.UUID = existing.UUID
		}
		return repo.Update(ctx, &d)
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply debt: %w", err)
	}

	uc.logger.Debug("Applied remote debt", zap.String("invoice_number", remote.InvoiceNum), zap.Bool("created", created))
	return created, nil
}

func (uc *debtUseCase) ListDebts(ctx context.Context, openOnly bool, limit int) ([]model.Debt, error) {
	return uc.repo.List(ctx, openOnly, limit)
}
