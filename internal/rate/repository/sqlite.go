package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/rate"
	"github.com/jmoiron/sqlx"
)

const keyCurrentRate = "exchange_rate_fc_per_usd"

type SQLiteRepository struct {
	DB          sqlite.DBTX
	defaultRate float64
}

func NewSQLiteRepository(db sqlite.DBTX, defaultRate float64) *SQLiteRepository {
	return &SQLiteRepository{DB: db, defaultRate: defaultRate}
}

func (r *SQLiteRepository) WithTx(tx *sqlx.Tx) rate.Repository {
	return &SQLiteRepository{DB: tx, defaultRate: r.defaultRate}
}

func (r *SQLiteRepository) Current(ctx context.Context) (float64, error) {
	// 1. Mirrored setting
	var raw string
	err := r.DB.GetContext(ctx, &raw, `SELECT value FROM settings WHERE key = ?`, keyCurrentRate)
	if err == nil {
		if v, perr := strconv.ParseFloat(raw, 64); perr == nil && v > 0 {
			return v, nil
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read current rate: %w", err)
	}

	// 2. Latest history row
	var v float64
	err = r.DB.GetContext(ctx, &v, `SELECT rate_fc_per_usd FROM exchange_rates ORDER BY effective_at DESC, id DESC LIMIT 1`)
	if err == nil && v > 0 {
		return v, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read rate history: %w", err)
	}

	return r.defaultRate, nil
}

func (r *SQLiteRepository) SetCurrent(ctx context.Context, v float64, effectiveAt time.Time, source model.Origin) error {
	if v <= 0 {
		return fmt.Errorf("invalid rate %v", v)
	}

	query := `
        INSERT INTO settings (key, value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            value = excluded.value,
            updated_at = excluded.updated_at
    `
	if _, err := r.DB.ExecContext(ctx, query, keyCurrentRate, strconv.FormatFloat(v, 'f', -1, 64), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update current rate: %w", err)
	}

	if _, err := r.DB.ExecContext(ctx,
		`INSERT INTO exchange_rates (rate_fc_per_usd, effective_at, source) VALUES (?, ?, ?)`,
		v, effectiveAt.UTC(), source,
	); err != nil {
		return fmt.Errorf("failed to log rate history: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) History(ctx context.Context, limit int) ([]model.ExchangeRate, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []model.ExchangeRate
	err := r.DB.SelectContext(ctx, &items, `SELECT * FROM exchange_rates ORDER BY effective_at DESC, id DESC LIMIT ?`, limit)
	return items, err
}
