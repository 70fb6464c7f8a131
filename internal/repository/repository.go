package repository

import (
	"context"
	"io"

	"cardshop/internal/domain"
)

// UserRepository defines user data operations
type UserRepository interface {
	GetOrCreate(ctx context.Context, telegramID int64, phone string, isAdmin bool) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
}

// ShopRepository defines shop data operations
type ShopRepository interface {
	Create(ctx context.Context, ownerID int64, name string, fullAccess bool) (*domain.Shop, error)
	GetByID(ctx context.Context, id int64) (*domain.Shop, error)
	GetByName(ctx context.Context, name string) (*domain.Shop, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Shop, error)
	List(ctx context.Context) ([]domain.Shop, error)
}

// CardRepository defines card data operations
type CardRepository interface {
	Create(ctx context.Context, card *domain.Card) (*domain.Card, error)
	GetByID(ctx context.Context, id int64) (*domain.Card, error)
	ListByShop(ctx context.Context, shopID int64) ([]domain.Card, error)
}

// PurchaseRepository defines purchase data operations and the aggregates built on them
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *domain.Purchase) (*domain.Purchase, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Purchase, error)
	List(ctx context.Context) ([]domain.Purchase, error)
	SumByUser(ctx context.Context, userID int64) (float64, error)
	CountByShop(ctx context.Context, shopID int64) (int, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	SalesByShop(ctx context.Context) ([]domain.ShopSales, error)
}

// RegistrationStore persists registration records keyed by owner and credential
type RegistrationStore interface {
	SaveImage(ownerID int64, cred domain.Credential, index int, r io.Reader) (string, error)
	Save(rec *domain.RegistrationRecord) error
	Find(cred domain.Credential) (*domain.RegistrationRecord, error)
	Discover() ([]domain.Credential, error)
}

// MediaStore keeps image bytes outside the catalog
type MediaStore interface {
	SaveCardImage(shopID int64, r io.Reader) (string, error)
	SavePurchaseEvidence(cardID int64, r io.Reader) (string, error)
	Remove(path string) error
}
