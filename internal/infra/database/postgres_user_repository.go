package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"question_rotation_bot/internal/domain/user"
)

// Custom errors
var ErrUserNotFound = fmt.Errorf("user not found")
var ErrDuplicateTelegramID = fmt.Errorf("user with this Telegram ID already exists")

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `INSERT INTO users (telegram_id, name, region_id)
               VALUES ($1, $2, $3)
               RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, u.TelegramID, u.Name, u.RegionID).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrDuplicateTelegramID
		case isForeignKeyViolation(err):
			return ErrRegionReferenceMissing
		}
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT id, telegram_id, name, region_id, created_at, updated_at FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	query := `SELECT id, telegram_id, name, region_id, created_at, updated_at FROM users WHERE telegram_id = $1`
	return r.getOne(ctx, query, telegramID)
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, arg int64) (*user.User, error) {
	u := &user.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.TelegramID, &u.Name, &u.RegionID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) DeleteByTelegramID(ctx context.Context, telegramID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
