package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	"github.com/fekuna/omnipos-sync/internal/outbox/dto"
	"github.com/jmoiron/sqlx"
)

type SQLiteRepository struct {
	DB sqlite.DBTX
}

func NewSQLiteRepository(db sqlite.DBTX) *SQLiteRepository {
	return &SQLiteRepository{DB: db}
}

func (r *SQLiteRepository) WithTx(tx *sqlx.Tx) outbox.Repository {
	return &SQLiteRepository{DB: tx}
}

func (r *SQLiteRepository) Create(ctx context.Context, op *model.SyncOperation) error {
	query := `
        INSERT INTO sync_operations (
            op_id, op_type, entity_uuid, entity_code, payload, device_id,
            status, tries, created_at, updated_at
        )
        VALUES (
            :op_id, :op_type, :entity_uuid, :entity_code, :payload, :device_id,
            :status, :tries, :created_at, :updated_at
        )
    `
	if _, err := r.DB.NamedExecContext(ctx, query, op); err != nil {
		return fmt.Errorf("failed to insert sync operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindByOpID(ctx context.Context, opID string) (*model.SyncOperation, error) {
	var op model.SyncOperation
	err := r.DB.GetContext(ctx, &op, `SELECT * FROM sync_operations WHERE op_id = ?`, opID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &op, nil
}

func (r *SQLiteRepository) FindPending(ctx context.Context, opType model.OpType, entityUUID string) (*model.SyncOperation, error) {
	var op model.SyncOperation
	query := `
        SELECT * FROM sync_operations
        WHERE op_type = ? AND entity_uuid = ? AND status = 'pending'
        ORDER BY created_at ASC, id ASC
        LIMIT 1
    `
	err := r.DB.GetContext(ctx, &op, query, opType, entityUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &op, nil
}

func (r *SQLiteRepository) UpdatePayload(ctx context.Context, opID, payload, entityCode string, at time.Time) error {
	query := `
        UPDATE sync_operations
        SET payload = ?, entity_code = ?, updated_at = ?
        WHERE op_id = ? AND status = 'pending'
    `
	res, err := r.DB.ExecContext(ctx, query, payload, entityCode, at, opID)
	if err != nil {
		return fmt.Errorf("failed to merge payload: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("operation %s is no longer pending", opID)
	}
	return nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context, f *dto.PendingFilters) ([]model.SyncOperation, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}

	query := `SELECT * FROM sync_operations WHERE status = 'pending'`
	args := []any{}
	if f.OpType != nil {
		query += ` AND op_type = ?`
		args = append(args, *f.OpType)
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	var ops []model.SyncOperation
	if err := r.DB.SelectContext(ctx, &ops, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list pending operations: %w", err)
	}
	return ops, nil
}

func (r *SQLiteRepository) MarkSent(ctx context.Context, opIDs []string, at time.Time) error {
	if len(opIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`
        UPDATE sync_operations
        SET status = 'sent', sent_at = ?, updated_at = ?
        WHERE op_id IN (?) AND status = 'pending'
    `, at, at, opIDs)
	if err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, r.DB.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to mark operations sent: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkAcked(ctx context.Context, opIDs []string, at time.Time) error {
	if len(opIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`
        UPDATE sync_operations
        SET status = 'acked', acked_at = ?, updated_at = ?, last_error = NULL
        WHERE op_id IN (?)
    `, at, at, opIDs)
	if err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, r.DB.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to mark operations acked: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkError(ctx context.Context, opID, message string, at time.Time) error {
	query := `
        UPDATE sync_operations
        SET status = 'error', tries = tries + 1, last_error = ?, updated_at = ?
        WHERE op_id = ? AND status IN ('pending', 'sent')
    `
	if _, err := r.DB.ExecContext(ctx, query, message, at, opID); err != nil {
		return fmt.Errorf("failed to mark operation error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ResetSent(ctx context.Context, opIDs []string, at time.Time) (int64, error) {
	if len(opIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`
        UPDATE sync_operations
        SET status = 'pending', sent_at = NULL, updated_at = ?
        WHERE op_id IN (?) AND status = 'sent'
    `, at, opIDs)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to reset sent operations: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) RecoverSent(ctx context.Context, at time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE sync_operations
        SET status = 'pending', sent_at = NULL, updated_at = ?
        WHERE status = 'sent'
    `, at)
	if err != nil {
		return 0, fmt.Errorf("failed to recover sent operations: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) RetryErrors(ctx context.Context, maxTries int, at time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE sync_operations
        SET status = 'pending', updated_at = ?
        WHERE status = 'error' AND tries < ?
    `, at, maxTries)
	if err != nil {
		return 0, fmt.Errorf("failed to retry error operations: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Requeue(ctx context.Context, opIDs []string, at time.Time) (int64, error) {
	if len(opIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`
        UPDATE sync_operations
        SET status = 'pending', updated_at = ?
        WHERE op_id IN (?) AND status = 'error'
    `, at, opIDs)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue operations: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) HasPendingByCode(ctx context.Context, opType model.OpType, entityCode string) (bool, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, `
        SELECT COUNT(*) FROM sync_operations
        WHERE op_type = ? AND entity_code = ? AND status IN ('pending', 'sent')
    `, opType, entityCode)
	return n > 0, err
}

func (r *SQLiteRepository) HasUnitPatchPending(ctx context.Context, key model.UnitKey) (bool, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, `
        SELECT COUNT(*) FROM sync_operations
        WHERE op_type = 'UNIT_PATCH'
          AND entity_code = ?
          AND json_extract(payload, '$.unit_level') = ?
          AND json_extract(payload, '$.unit_mark') = ?
          AND status IN ('pending', 'sent')
    `, key.ProductCode, key.UnitLevel, key.UnitMark)
	return n > 0, err
}

func (r *SQLiteRepository) Stats(ctx context.Context, maxTries int) (*model.OutboxStats, error) {
	stats := &model.OutboxStats{PendingByType: map[model.OpType]int{}}

	// 1. Pending by type
	var rows []struct {
		OpType model.OpType `db:"op_type"`
		Count  int          `db:"count"`
	}
	if err := r.DB.SelectContext(ctx, &rows, `
        SELECT op_type, COUNT(*) AS count FROM sync_operations
        WHERE status = 'pending' GROUP BY op_type
    `); err != nil {
		return nil, fmt.Errorf("failed to count pending operations: %w", err)
	}
	for _, row := range rows {
		stats.PendingByType[row.OpType] = row.Count
		stats.TotalPending += row.Count
	}

	// 2. Sent / errors
	var counts struct {
		Sent        int `db:"sent"`
		Errors      int `db:"errors"`
		ErrorsAtCap int `db:"errors_at_cap"`
	}
	if err := r.DB.GetContext(ctx, &counts, `
        SELECT
            COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0) AS sent,
            COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0) AS errors,
            COALESCE(SUM(CASE WHEN status = 'error' AND tries >= ? THEN 1 ELSE 0 END), 0) AS errors_at_cap
        FROM sync_operations
    `, maxTries); err != nil {
		return nil, fmt.Errorf("failed to count operation errors: %w", err)
	}
	stats.Sent = counts.Sent
	stats.Errors = counts.Errors
	stats.ErrorsAtCap = counts.ErrorsAtCap

	// 3. Unsynced stock moves
	if err := r.DB.GetContext(ctx, &stats.StockMovesPending, `SELECT COUNT(*) FROM stock_moves WHERE synced = 0`); err != nil {
		return nil, fmt.Errorf("failed to count stock moves: %w", err)
	}

	// 4. Last ack
	var last model.SyncOperation
	err := r.DB.GetContext(ctx, &last, `
        SELECT * FROM sync_operations WHERE status = 'acked'
        ORDER BY acked_at DESC, id DESC LIMIT 1
    `)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read last ack: %w", err)
	}
	if err == nil {
		stats.LastAckedAt = last.AckedAt
	}

	return stats, nil
}
