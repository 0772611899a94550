package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/product"
	"github.com/fekuna/omnipos-sync/internal/product/dto"
	"github.com/jmoiron/sqlx"
)

type SQLiteRepository struct {
	DB sqlite.DBTX
}

func NewSQLiteRepository(db sqlite.DBTX) *SQLiteRepository {
	return &SQLiteRepository{DB: db}
}

func (r *SQLiteRepository) WithTx(tx *sqlx.Tx) product.Repository {
	return &SQLiteRepository{DB: tx}
}

func (r *SQLiteRepository) Create(ctx context.Context, p *model.Product) error {
	query := `
        INSERT INTO products (uuid, code, name, is_active, origin, created_at, updated_at)
        VALUES (:uuid, :code, :name, :is_active, :origin, :created_at, :updated_at)
    `
	res, err := r.DB.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		p.ID = id
	}
	return nil
}

func (r *SQLiteRepository) find(ctx context.Context, column, value string) (*model.Product, error) {
	var p model.Product
	query := fmt.Sprintf(`SELECT * FROM products WHERE %s = ? LIMIT 1`, column)
	err := r.DB.GetContext(ctx, &p, query, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *SQLiteRepository) FindByCode(ctx context.Context, code string) (*model.Product, error) {
	return r.find(ctx, "code", code)
}

func (r *SQLiteRepository) FindByUUID(ctx context.Context, uuid string) (*model.Product, error) {
	return r.find(ctx, "uuid", uuid)
}

func (r *SQLiteRepository) FindAll(ctx context.Context, f *dto.ProductFilters) ([]model.Product, int, error) {
	var products []model.Product
	var count int

	conditions := []string{}
	args := []any{}

	if f.IsActive != nil {
		conditions = append(conditions, "is_active = ?")
		args = append(args, *f.IsActive)
	}
	if f.SearchQuery != "" {
		conditions = append(conditions, "(name LIKE ? OR code LIKE ?)")
		args = append(args, "%"+f.SearchQuery+"%", "%"+f.SearchQuery+"%")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	// Count
	if err := r.DB.GetContext(ctx, &count, "SELECT COUNT(*) FROM products"+whereClause, args...); err != nil {
		return nil, 0, err
	}

	// List
	query := "SELECT * FROM products" + whereClause + " ORDER BY code ASC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	if err := r.DB.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, err
	}
	return products, count, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, p *model.Product) error {
	query := `
        UPDATE products
        SET uuid = :uuid,
            code = :code,
            name = :name,
            is_active = :is_active,
            origin = :origin,
            updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := r.DB.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM products`)
	return n, err
}

func (r *SQLiteRepository) ListUnits(ctx context.Context, productID int64) ([]model.ProductUnit, error) {
	var units []model.ProductUnit
	err := r.DB.SelectContext(ctx, &units, `SELECT * FROM product_units WHERE product_id = ? ORDER BY id ASC`, productID)
	return units, err
}

func (r *SQLiteRepository) ListAllUnits(ctx context.Context) ([]model.ProductUnit, error) {
	var units []model.ProductUnit
	err := r.DB.SelectContext(ctx, &units, `SELECT * FROM product_units ORDER BY id ASC`)
	return units, err
}

func (r *SQLiteRepository) CreateUnit(ctx context.Context, u *model.ProductUnit) error {
	query := `
        INSERT INTO product_units (
            uuid, uuid_provisional, product_id, unit_level, unit_mark, stock_initial, stock_current,
            baseline_move_seq, purchase_price_usd, sale_price_usd, sale_price_fc,
            auto_stock_factor, qty_step, last_update, updated_at
        )
        VALUES (
            :uuid, :uuid_provisional, :product_id, :unit_level, :unit_mark, :stock_initial, :stock_current,
            :baseline_move_seq, :purchase_price_usd, :sale_price_usd, :sale_price_fc,
            :auto_stock_factor, :qty_step, :last_update, :updated_at
        )
    `
	res, err := r.DB.NamedExecContext(ctx, query, u)
	if err != nil {
		return fmt.Errorf("failed to insert product unit: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		u.ID = id
	}
	return nil
}

func (r *SQLiteRepository) UpdateUnit(ctx context.Context, u *model.ProductUnit) error {
	query := `
        UPDATE product_units
        SET uuid = :uuid,
            uuid_provisional = :uuid_provisional,
            unit_level = :unit_level,
            unit_mark = :unit_mark,
            stock_initial = :stock_initial,
            stock_current = :stock_current,
            baseline_move_seq = :baseline_move_seq,
            purchase_price_usd = :purchase_price_usd,
            sale_price_usd = :sale_price_usd,
            sale_price_fc = :sale_price_fc,
            auto_stock_factor = :auto_stock_factor,
            qty_step = :qty_step,
            last_update = :last_update,
            updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := r.DB.NamedExecContext(ctx, query, u); err != nil {
		return fmt.Errorf("failed to update product unit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateUnitPriceFC(ctx context.Context, unitID int64, priceFC float64) error {
	if _, err := r.DB.ExecContext(ctx, `UPDATE product_units SET sale_price_fc = ? WHERE id = ?`, priceFC, unitID); err != nil {
		return fmt.Errorf("failed to update unit price: %w", err)
	}
	return nil
}
