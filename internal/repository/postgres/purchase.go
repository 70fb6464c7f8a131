package postgres

import (
	"context"
	"database/sql"

	"cardshop/internal/domain"
)

// PurchaseRepo implements repository.PurchaseRepository
type PurchaseRepo struct {
	db *sql.DB
}

// NewPurchaseRepo creates a new purchase repository
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo {
	return &PurchaseRepo{db: db}
}

const purchaseColumns = `id, user_id, card_id, token, amount, COALESCE(evidence_path, ''), created_at`

// Create inserts a purchase. A token collision surfaces as domain.ErrConflict.
func (r *PurchaseRepo) Create(ctx context.Context, p *domain.Purchase) (*domain.Purchase, error) {
	query := `
		INSERT INTO purchases (user_id, card_id, token, amount, evidence_path)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING ` + purchaseColumns

	row := r.db.QueryRowContext(ctx, query, p.UserID, p.CardID, p.Token, p.Amount, p.EvidencePath)
	var out domain.Purchase
	if err := row.Scan(&out.ID, &out.UserID, &out.CardID, &out.Token, &out.Amount, &out.EvidencePath, &out.CreatedAt); err != nil {
		return nil, mapError(err, "create purchase")
	}
	return &out, nil
}

// ListByUser returns a user's purchases, newest first
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, userID)
}

// List returns the whole purchase ledger, newest first
func (r *PurchaseRepo) List(ctx context.Context) ([]domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

// SumByUser returns the total amount a user has spent
func (r *PurchaseRepo) SumByUser(ctx context.Context, userID int64) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM purchases WHERE user_id = $1`

	var total float64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, mapError(err, "sum purchases")
	}
	return total, nil
}

// CountByShop returns the number of purchases of a shop's cards
func (r *PurchaseRepo) CountByShop(ctx context.Context, shopID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM purchases p
		JOIN cards c ON c.id = p.card_id
		WHERE c.shop_id = $1
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, shopID).Scan(&count); err != nil {
		return 0, mapError(err, "count purchases")
	}
	return count, nil
}

// Leaderboard returns buyers ordered by total spent, highest first
func (r *PurchaseRepo) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT u.telegram_id, SUM(p.amount) AS total
		FROM purchases p
		JOIN users u ON u.id = p.user_id
		GROUP BY u.telegram_id
		ORDER BY total DESC, u.telegram_id
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, mapError(err, "leaderboard")
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.TelegramID, &e.TotalSpent); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SalesByShop returns the purchase count of every shop, busiest first
func (r *PurchaseRepo) SalesByShop(ctx context.Context) ([]domain.ShopSales, error) {
	query := `
		SELECT s.id, s.name, COUNT(p.id) AS sold
		FROM shops s
		LEFT JOIN cards c ON c.shop_id = s.id
		LEFT JOIN purchases p ON p.card_id = c.id
		GROUP BY s.id, s.name
		ORDER BY sold DESC, s.id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err, "sales by shop")
	}
	defer rows.Close()

	var sales []domain.ShopSales
	for rows.Next() {
		var s domain.ShopSales
		if err := rows.Scan(&s.ShopID, &s.ShopName, &s.Purchases); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}

	return sales, rows.Err()
}

func (r *PurchaseRepo) list(ctx context.Context, query string, args ...any) ([]domain.Purchase, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list purchases")
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.CardID, &p.Token, &p.Amount, &p.EvidencePath, &p.CreatedAt); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}

	return purchases, rows.Err()
}
