package postgres

import (
	"context"
	"database/sql"

	"cardshop/internal/domain"
)

// UserRepo implements repository.UserRepository
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, telegram_id, COALESCE(phone, ''), is_admin, created_at`

// GetOrCreate upserts a user keyed by telegram id.
// The admin flag is only written on insert; a phone is filled in once if it was missing.
func (r *UserRepo) GetOrCreate(ctx context.Context, telegramID int64, phone string, isAdmin bool) (*domain.User, error) {
	query := `
		INSERT INTO users (telegram_id, phone, is_admin)
		VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (telegram_id)
		DO UPDATE SET phone = COALESCE(users.phone, EXCLUDED.phone)
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID, phone, isAdmin))
	if err != nil {
		return nil, mapError(err, "get or create user")
	}
	return u, nil
}

// GetByID returns a user by primary key
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get user")
	}
	return u, nil
}

// GetByTelegramID returns a user by chat identity
func (r *UserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		return nil, mapError(err, "get user")
	}
	return u, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Phone, &u.IsAdmin, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
