package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/user"
	"github.com/jmoiron/sqlx"
)

type SQLiteRepository struct {
	DB sqlite.DBTX
}

func NewSQLiteRepository(db sqlite.DBTX) *SQLiteRepository {
	return &SQLiteRepository{DB: db}
}

func (r *SQLiteRepository) WithTx(tx *sqlx.Tx) user.Repository {
	return &SQLiteRepository{DB: tx}
}

func (r *SQLiteRepository) Create(ctx context.Context, u *model.User) error {
	query := `
        INSERT INTO users (uuid, username, phone, is_active, is_admin, is_seller, updated_at)
        VALUES (:uuid, :username, :phone, :is_active, :is_admin, :is_seller, :updated_at)
    `
	res, err := r.DB.NamedExecContext(ctx, query, u)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		u.ID = id
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, u *model.User) error {
	query := `
        UPDATE users
        SET uuid = :uuid,
            username = :username,
            phone = :phone,
            is_active = :is_active,
            is_admin = :is_admin,
            is_seller = :is_seller,
            updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := r.DB.NamedExecContext(ctx, query, u); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *SQLiteRepository) FindByUUID(ctx context.Context, uuid string) (*model.User, error) {
	return r.findOne(ctx, `SELECT * FROM users WHERE uuid = ? LIMIT 1`, uuid)
}

func (r *SQLiteRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, `SELECT * FROM users WHERE username = ? LIMIT 1`, username)
}

func (r *SQLiteRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.DB.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY username ASC`)
	return users, err
}
