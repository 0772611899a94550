// Package testutil holds helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// NewDB returns a migrated SQLite store living in the test's temp dir.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlite.NewSQLite(&sqlite.Config{Path: filepath.Join(t.TempDir(), "pos.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, sqlite.Migrate(db))
	return db
}

// Clock is a settable time source for deterministic timestamps.
type Clock struct {
	T time.Time
}

func NewClock() *Clock {
	return &Clock{T: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	return c.T
}

// Advance moves the clock forward and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.T = c.T.Add(d)
	return c.T
}

// SeedProduct inserts a product and its units directly and returns the
// stored rows with ids filled in.
func SeedProduct(t *testing.T, db *sqlx.DB, p model.Product, units ...model.ProductUnit) *model.Product {
	t.Helper()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if p.UUID == "" {
		p.UUID = uuid.New().String()
	}
	if p.Origin == "" {
		p.Origin = model.OriginLocal
	}
	p.CreatedAt, p.UpdatedAt = now, now

	res, err := db.NamedExec(`
        INSERT INTO products (uuid, code, name, is_active, origin, created_at, updated_at)
        VALUES (:uuid, :code, :name, :is_active, :origin, :created_at, :updated_at)`, &p)
	require.NoError(t, err)
	p.ID, err = res.LastInsertId()
	require.NoError(t, err)

	for _, u := range units {
		if u.UUID == "" {
			u.UUID = uuid.New().String()
		}
		if u.AutoStockFactor == 0 {
			u.AutoStockFactor = 1
		}
		if u.QtyStep == 0 {
			u.QtyStep = 1
		}
		u.ProductID = p.ID
		u.UpdatedAt = now

		res, err := db.NamedExec(`
            INSERT INTO product_units (
                uuid, product_id, unit_level, unit_mark, stock_initial, stock_current,
                baseline_move_seq, purchase_price_usd, sale_price_usd, sale_price_fc,
                auto_stock_factor, qty_step, last_update, updated_at
            )
            VALUES (
                :uuid, :product_id, :unit_level, :unit_mark, :stock_initial, :stock_current,
                :baseline_move_seq, :purchase_price_usd, :sale_price_usd, :sale_price_fc,
                :auto_stock_factor, :qty_step, :last_update, :updated_at
            )`, &u)
		require.NoError(t, err)
		u.ID, err = res.LastInsertId()
		require.NoError(t, err)
		p.Units = append(p.Units, u)
	}
	return &p
}
