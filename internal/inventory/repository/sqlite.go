package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/inventory"
	"github.com/fekuna/omnipos-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type SQLiteRepository struct {
	DB sqlite.DBTX
}

func NewSQLiteRepository(db sqlite.DBTX) *SQLiteRepository {
	return &SQLiteRepository{DB: db}
}

func (r *SQLiteRepository) WithTx(tx *sqlx.Tx) inventory.Repository {
	return &SQLiteRepository{DB: tx}
}

func (r *SQLiteRepository) FindUnit(ctx context.Context, key model.UnitKey) (*model.ProductUnit, error) {
	var unit model.ProductUnit
	query := `
        SELECT u.* FROM product_units u
        JOIN products p ON p.id = u.product_id
        WHERE p.code = ? AND u.unit_level = ? AND u.unit_mark = ?
        ORDER BY u.id ASC
        LIMIT 1
    `
	err := r.DB.GetContext(ctx, &unit, query, key.ProductCode, key.UnitLevel, key.UnitMark)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &unit, nil
}

func (r *SQLiteRepository) SetUnitStock(ctx context.Context, unitID int64, stock float64, at time.Time) error {
	query := `UPDATE product_units SET stock_current = ?, last_update = ?, updated_at = ? WHERE id = ?`
	if _, err := r.DB.ExecContext(ctx, query, stock, at, at, unitID); err != nil {
		return fmt.Errorf("failed to update unit stock: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateMove(ctx context.Context, m *model.StockMove) error {
	query := `
        INSERT INTO stock_moves (
            move_id, product_uuid, product_code, unit_level, unit_mark, delta,
            reason, reference_id, stock_before, stock_after, device_id, synced, created_at
        )
        VALUES (
            :move_id, :product_uuid, :product_code, :unit_level, :unit_mark, :delta,
            :reason, :reference_id, :stock_before, :stock_after, :device_id, :synced, :created_at
        )
    `
	res, err := r.DB.NamedExecContext(ctx, query, m)
	if err != nil {
		return fmt.Errorf("failed to insert stock move: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		m.ID = id
	}
	return nil
}

func (r *SQLiteRepository) FindMove(ctx context.Context, moveID string) (*model.StockMove, error) {
	var m model.StockMove
	err := r.DB.GetContext(ctx, &m, `SELECT * FROM stock_moves WHERE move_id = ?`, moveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *SQLiteRepository) ListMoves(ctx context.Context, f *dto.MoveFilters) ([]model.StockMove, error) {
	conditions := []string{}
	args := []any{}

	if f.ProductCode != "" {
		conditions = append(conditions, "product_code = ?")
		args = append(args, f.ProductCode)
	}
	if f.UnitLevel != "" {
		conditions = append(conditions, "unit_level = ?")
		args = append(args, f.UnitLevel)
	}
	if f.UnitMark != nil {
		conditions = append(conditions, "unit_mark = ?")
		args = append(args, *f.UnitMark)
	}
	if f.Reason != "" {
		conditions = append(conditions, "reason = ?")
		args = append(args, f.Reason)
	}
	if f.ReferenceID != "" {
		conditions = append(conditions, "reference_id = ?")
		args = append(args, f.ReferenceID)
	}
	if f.Synced != nil {
		conditions = append(conditions, "synced = ?")
		args = append(args, *f.Synced)
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.StartDate.UTC())
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, f.EndDate.UTC())
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := "SELECT * FROM stock_moves" + whereClause + " ORDER BY id ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var moves []model.StockMove
	if err := r.DB.SelectContext(ctx, &moves, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list stock moves: %w", err)
	}
	return moves, nil
}

func (r *SQLiteRepository) ListUnsynced(ctx context.Context, limit int) ([]model.StockMove, error) {
	synced := false
	return r.ListMoves(ctx, &dto.MoveFilters{Synced: &synced, Limit: limit})
}

func (r *SQLiteRepository) HasUnsynced(ctx context.Context, key model.UnitKey) (bool, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, `
        SELECT COUNT(*) FROM stock_moves
        WHERE product_code = ? AND unit_level = ? AND unit_mark = ? AND synced = 0
    `, key.ProductCode, key.UnitLevel, key.UnitMark)
	return n > 0, err
}

func (r *SQLiteRepository) UnsyncedDelta(ctx context.Context, key model.UnitKey) (float64, error) {
	var sum float64
	err := r.DB.GetContext(ctx, &sum, `
        SELECT COALESCE(SUM(delta), 0) FROM stock_moves
        WHERE product_code = ? AND unit_level = ? AND unit_mark = ? AND synced = 0
    `, key.ProductCode, key.UnitLevel, key.UnitMark)
	return sum, err
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, moveIDs []string, at time.Time) error {
	if len(moveIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`
        UPDATE stock_moves SET synced = 1, synced_at = ?
        WHERE move_id IN (?) AND synced = 0
    `, at, moveIDs)
	if err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, r.DB.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to mark stock moves synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SumSince(ctx context.Context, key model.UnitKey, seq int64) (float64, error) {
	var sum float64
	err := r.DB.GetContext(ctx, &sum, `
        SELECT COALESCE(SUM(delta), 0) FROM stock_moves
        WHERE product_code = ? AND unit_level = ? AND unit_mark = ? AND id > ?
    `, key.ProductCode, key.UnitLevel, key.UnitMark, seq)
	return sum, err
}

func (r *SQLiteRepository) LastMoveSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.DB.GetContext(ctx, &seq, `SELECT COALESCE(MAX(id), 0) FROM stock_moves`)
	return seq, err
}
