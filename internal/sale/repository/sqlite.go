package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/sale"
	"github.com/jmoiron/sqlx"
)

type SQLiteRepository struct {
	DB sqlite.DBTX
}

func NewSQLiteRepository(db sqlite.DBTX) *SQLiteRepository {
	return &SQLiteRepository{DB: db}
}

func (r *SQLiteRepository) WithTx(tx *sqlx.Tx) sale.Repository {
	return &SQLiteRepository{DB: tx}
}

func (r *SQLiteRepository) Create(ctx context.Context, s *model.Sale) error {
	query := `
        INSERT INTO sales (
            uuid, invoice_number, sold_at, client_name, client_phone, seller_name,
            total_fc, total_usd, rate_fc_per_usd, payment_mode, status, origin,
            device_id, created_at, updated_at
        )
        VALUES (
            :uuid, :invoice_number, :sold_at, :client_name, :client_phone, :seller_name,
            :total_fc, :total_usd, :rate_fc_per_usd, :payment_mode, :status, :origin,
            :device_id, :created_at, :updated_at
        )
    `
	res, err := r.DB.NamedExecContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		s.ID = id
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, s *model.Sale) error {
	query := `
        UPDATE sales
        SET uuid = :uuid,
            sold_at = :sold_at,
            client_name = :client_name,
            client_phone = :client_phone,
            seller_name = :seller_name,
            total_fc = :total_fc,
            total_usd = :total_usd,
            rate_fc_per_usd = :rate_fc_per_usd,
            payment_mode = :payment_mode,
            status = :status,
            origin = :origin,
            device_id = :device_id,
            updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := r.DB.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("failed to update sale: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindByInvoice(ctx context.Context, invoice string) (*model.Sale, error) {
	var s model.Sale
	err := r.DB.GetContext(ctx, &s, `SELECT * FROM sales WHERE invoice_number = ? LIMIT 1`, invoice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepository) FindRecent(ctx context.Context, limit int) ([]model.Sale, error) {
	if limit <= 0 {
		limit = 50
	}
	var sales []model.Sale
	err := r.DB.SelectContext(ctx, &sales, `SELECT * FROM sales ORDER BY sold_at DESC, id DESC LIMIT ?`, limit)
	return sales, err
}

func (r *SQLiteRepository) CreateItem(ctx context.Context, it *model.SaleItem) error {
	query := `
        INSERT INTO sale_items (
            uuid, sale_id, product_id, product_code, product_name, unit_level, unit_mark,
            qty, unit_price_fc, unit_price_usd, subtotal_fc, subtotal_usd
        )
        VALUES (
            :uuid, :sale_id, :product_id, :product_code, :product_name, :unit_level, :unit_mark,
            :qty, :unit_price_fc, :unit_price_usd, :subtotal_fc, :subtotal_usd
        )
    `
	res, err := r.DB.NamedExecContext(ctx, query, it)
	if err != nil {
		return fmt.Errorf("failed to insert sale item: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		it.ID = id
	}
	return nil
}

func (r *SQLiteRepository) ListItems(ctx context.Context, saleID int64) ([]model.SaleItem, error) {
	var items []model.SaleItem
	err := r.DB.SelectContext(ctx, &items, `SELECT * FROM sale_items WHERE sale_id = ? ORDER BY id ASC`, saleID)
	return items, err
}

func (r *SQLiteRepository) DeleteItems(ctx context.Context, saleID int64) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = ?`, saleID); err != nil {
		return fmt.Errorf("failed to delete sale items: %w", err)
	}
	return nil
}
