package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/debt"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type SQLiteRepository struct {
	DB sqlite.DBTX
}

func NewSQLiteRepository(db sqlite.DBTX) *SQLiteRepository {
	return &SQLiteRepository{DB: db}
}

func (r *SQLiteRepository) WithTx(tx *sqlx.Tx) debt.Repository {
	return &SQLiteRepository{DB: tx}
}

func (r *SQLiteRepository) Create(ctx context.Context, d *model.Debt) error {
	query := `
        INSERT INTO debts (
            uuid, invoice_number, client_name, client_phone, product_description,
            total_fc, paid_fc, remaining_fc, total_usd, note, status, created_at, updated_at
        )
        VALUES (
            :uuid, :invoice_number, :client_name, :client_phone, :product_description,
            :total_fc, :paid_fc, :remaining_fc, :total_usd, :note, :status, :created_at, :updated_at
        )
    `
	res, err := r.DB.NamedExecContext(ctx, query, d)
	if err != nil {
		return fmt.Errorf("failed to insert debt: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		d.ID = id
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, d *model.Debt) error {
	query := `
        UPDATE debts
        SET uuid = :uuid,
            invoice_number = :invoice_number,
            client_name = :client_name,
            client_phone = :client_phone,
            product_description = :product_description,
            total_fc = :total_fc,
            paid_fc = :paid_fc,
            remaining_fc = :remaining_fc,
            total_usd = :total_usd,
            note = :note,
            status = :status,
            updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := r.DB.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) findOne(ctx context.Context, query string, arg any) (*model.Debt, error) {
	var d model.Debt
	err := r.DB.GetContext(ctx, &d, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *SQLiteRepository) FindByUUID(ctx context.Context, uuid string) (*model.Debt, error) {
	return r.findOne(ctx, `SELECT * FROM debts WHERE uuid = ? LIMIT 1`, uuid)
}

func (r *SQLiteRepository) FindByInvoice(ctx context.Context, invoice string) (*model.Debt, error) {
	return r.findOne(ctx, `SELECT * FROM debts WHERE invoice_number = ? ORDER BY id ASC LIMIT 1`, invoice)
}

func (r *SQLiteRepository) List(ctx context.Context, openOnly bool, limit int) ([]model.Debt, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT * FROM debts`
	if openOnly {
		query += ` WHERE remaining_fc > 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	var debts []model.Debt
	err := r.DB.SelectContext(ctx, &debts, query, limit)
	return debts, err
}

func (r *SQLiteRepository) FindIdentity(ctx context.Context, stableKey string) (string, bool, error) {
	var debtUUID string
	err := r.DB.GetContext(ctx, &debtUUID, `SELECT debt_uuid FROM debt_identities WHERE stable_key = ?`, stableKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return debtUUID, true, nil
}

func (r *SQLiteRepository) SaveIdentity(ctx context.Context, stableKey, debtUUID string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO debt_identities (stable_key, debt_uuid, created_at) VALUES (?, ?, ?) ON CONFLICT(stable_key) DO NOTHING`,
		stableKey, debtUUID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to save debt identity: %w", err)
	}
	return nil
}
