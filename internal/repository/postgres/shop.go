package postgres

import (
	"context"
	"database/sql"

	"cardshop/internal/domain"
)

// ShopRepo implements repository.ShopRepository
type ShopRepo struct {
	db *sql.DB
}

// NewShopRepo creates a new shop repository
func NewShopRepo(db *sql.DB) *ShopRepo {
	return &ShopRepo{db: db}
}

const shopColumns = `id, owner_id, name, full_access, created_at`

// Create inserts a shop; a taken name is a conflict and a missing owner is not found
func (r *ShopRepo) Create(ctx context.Context, ownerID int64, name string, fullAccess bool) (*domain.Shop, error) {
	query := `
		INSERT INTO shops (owner_id, name, full_access)
		VALUES ($1, $2, $3)
		RETURNING ` + shopColumns

	s, err := scanShop(r.db.QueryRowContext(ctx, query, ownerID, name, fullAccess))
	if err != nil {
		return nil, mapError(err, "create shop")
	}
	return s, nil
}

// GetByID returns a shop by primary key
func (r *ShopRepo) GetByID(ctx context.Context, id int64) (*domain.Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops WHERE id = $1`
	s, err := scanShop(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get shop")
	}
	return s, nil
}

// GetByName returns a shop by its unique name
func (r *ShopRepo) GetByName(ctx context.Context, name string) (*domain.Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops WHERE name = $1`
	s, err := scanShop(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		return nil, mapError(err, "get shop")
	}
	return s, nil
}

// ListByOwner returns all shops owned by a user
func (r *ShopRepo) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops WHERE owner_id = $1 ORDER BY id`
	return r.list(ctx, query, ownerID)
}

// List returns every shop
func (r *ShopRepo) List(ctx context.Context) ([]domain.Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops ORDER BY id`
	return r.list(ctx, query)
}

func (r *ShopRepo) list(ctx context.Context, query string, args ...any) ([]domain.Shop, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list shops")
	}
	defer rows.Close()

	var shops []domain.Shop
	for rows.Next() {
		var s domain.Shop
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.FullAccess, &s.CreatedAt); err != nil {
			return nil, err
		}
		shops = append(shops, s)
	}

	return shops, rows.Err()
}

func scanShop(row *sql.Row) (*domain.Shop, error) {
	var s domain.Shop
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.FullAccess, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
