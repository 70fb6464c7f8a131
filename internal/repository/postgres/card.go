package postgres

import (
	"context"
	"database/sql"

	"cardshop/internal/domain"
)

// CardRepo implements repository.CardRepository
type CardRepo struct {
	db *sql.DB
}

// NewCardRepo creates a new card repository
func NewCardRepo(db *sql.DB) *CardRepo {
	return &CardRepo{db: db}
}

const cardColumns = `id, shop_id, title, image_path, price, created_at`

// Create inserts a card for an existing shop
func (r *CardRepo) Create(ctx context.Context, card *domain.Card) (*domain.Card, error) {
	query := `
		INSERT INTO cards (shop_id, title, image_path, price)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + cardColumns

	c, err := scanCard(r.db.QueryRowContext(ctx, query, card.ShopID, card.Title, card.ImagePath, card.Price))
	if err != nil {
		return nil, mapError(err, "create card")
	}
	return c, nil
}

// GetByID returns a card by primary key
func (r *CardRepo) GetByID(ctx context.Context, id int64) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	c, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get card")
	}
	return c, nil
}

// ListByShop returns a shop's cards in creation order
func (r *CardRepo) ListByShop(ctx context.Context, shopID int64) ([]domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE shop_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, shopID)
	if err != nil {
		return nil, mapError(err, "list cards")
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.ShopID, &c.Title, &c.ImagePath, &c.Price, &c.CreatedAt); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}

	return cards, rows.Err()
}

func scanCard(row *sql.Row) (*domain.Card, error) {
	var c domain.Card
	if err := row.Scan(&c.ID, &c.ShopID, &c.Title, &c.ImagePath, &c.Price, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
