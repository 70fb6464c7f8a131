package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cardshop/internal/domain"
	"cardshop/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileFetcher downloads a file a user sent to one of the bots
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// CatalogService owns users, shops, cards and purchases
type CatalogService struct {
	users     repository.UserRepository
	shops     repository.ShopRepository
	cards     repository.CardRepository
	purchases repository.PurchaseRepository
	media     repository.MediaStore
	adminID   int64
	validate  *validator.Validate
	logger    *zap.Logger
	newToken  func() string
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	users repository.UserRepository,
	shops repository.ShopRepository,
	cards repository.CardRepository,
	purchases repository.PurchaseRepository,
	media repository.MediaStore,
	adminID int64,
	logger *zap.Logger,
) *CatalogService {
	return &CatalogService{
		users:     users,
		shops:     shops,
		cards:     cards,
		purchases: purchases,
		media:     media,
		adminID:   adminID,
		validate:  newValidator(),
		logger:    logger,
		newToken:  uuid.NewString,
	}
}

// GetOrCreateUser returns the user for a chat identity, creating it on first contact.
// The admin flag is decided once, at creation.
func (s *CatalogService) GetOrCreateUser(ctx context.Context, chatID int64, phone string) (*domain.User, error) {
	return s.users.GetOrCreate(ctx, chatID, phone, chatID == s.adminID)
}

// IsAdmin reports whether chatID is the configured admin
func (s *CatalogService) IsAdmin(chatID int64) bool {
	return chatID == s.adminID
}

// CreateShop creates a shop for an existing user
func (s *CatalogService) CreateShop(ctx context.Context, ownerID int64, name string, fullAccess bool) (*domain.Shop, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "shop name cannot be empty")
	}

	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("shop owner: %w", err)
	}

	shop, err := s.shops.Create(ctx, ownerID, name, fullAccess)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Shop created",
		zap.Int64("shop_id", shop.ID),
		zap.Int64("owner_id", ownerID),
		zap.String("name", name),
	)
	return shop, nil
}

// ProvisionShop makes sure the shop for a registration exists and is stocked.
// Running it again for the same owner and name returns the same shop and only
// seeds the registration items that are still missing.
func (s *CatalogService) ProvisionShop(ctx context.Context, rec *domain.RegistrationRecord, name string) (*domain.Shop, error) {
	owner, err := s.GetOrCreateUser(ctx, rec.OwnerID, rec.Contact)
	if err != nil {
		return nil, fmt.Errorf("provision owner: %w", err)
	}

	shop, err := s.shops.GetByName(ctx, name)
	switch {
	case err == nil:
		if shop.OwnerID != owner.ID {
			return nil, fmt.Errorf("shop %q belongs to another owner: %w", name, domain.ErrConflict)
		}
	case errors.Is(err, domain.ErrNotFound):
		shop, err = s.CreateShop(ctx, owner.ID, name, rec.Plan == domain.PlanFull)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	existing, err := s.cards.ListByShop(ctx, shop.ID)
	if err != nil {
		return nil, err
	}
	seeded := make(map[string]bool, len(existing))
	for _, card := range existing {
		seeded[card.ImagePath] = true
	}

	added := 0
	for _, item := range rec.Items {
		if seeded[item.ImagePath] {
			continue
		}
		if _, err := s.cards.Create(ctx, &domain.Card{
			ShopID:    shop.ID,
			Title:     item.Title,
			ImagePath: item.ImagePath,
			Price:     item.Price,
		}); err != nil {
			return nil, fmt.Errorf("seed card %q: %w", item.Title, err)
		}
		added++
	}

	if added > 0 {
		s.logger.Info("Shop stocked from registration",
			zap.Int64("shop_id", shop.ID),
			zap.Int("cards", added),
		)
	}
	return shop, nil
}

// ValidateCard checks the user-supplied fields of a card
func (s *CatalogService) ValidateCard(title string, price float64) error {
	card := domain.Card{Title: strings.TrimSpace(title), Price: price}
	if err := s.validate.StructPartial(card, "Title", "Price"); err != nil {
		return validationError(err)
	}
	return nil
}

// AddCard downloads the card image and creates the card. The image is removed if the insert fails.
func (s *CatalogService) AddCard(ctx context.Context, shopID int64, fileID, title string, price float64, fetcher FileFetcher) (*domain.Card, error) {
	if err := s.ValidateCard(title, price); err != nil {
		return nil, err
	}

	if _, err := s.CheckCardLimit(ctx, shopID); err != nil {
		return nil, err
	}

	path, err := s.saveFile(ctx, fetcher, fileID, func(r io.Reader) (string, error) {
		return s.media.SaveCardImage(shopID, r)
	})
	if err != nil {
		return nil, err
	}

	card, err := s.cards.Create(ctx, &domain.Card{
		ShopID:    shopID,
		Title:     strings.TrimSpace(title),
		ImagePath: path,
		Price:     price,
	})
	if err != nil {
		s.discard(path)
		return nil, err
	}

	s.logger.Info("Card added",
		zap.Int64("card_id", card.ID),
		zap.Int64("shop_id", shopID),
		zap.Float64("price", card.Price),
	)
	return card, nil
}

// CheckCardLimit returns the shop when it may take another card.
// A single-card shop that already has its card is a validation error.
func (s *CatalogService) CheckCardLimit(ctx context.Context, shopID int64) (*domain.Shop, error) {
	shop, err := s.shops.GetByID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if shop.FullAccess {
		return shop, nil
	}

	cards, err := s.cards.ListByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if len(cards) > 0 {
		return nil, domain.NewValidationError("card", "your plan includes a single card, register a full shop to sell more")
	}
	return shop, nil
}

// GetCard returns a card by id
func (s *CatalogService) GetCard(ctx context.Context, cardID int64) (*domain.Card, error) {
	return s.cards.GetByID(ctx, cardID)
}

// Purchase records a buyer acquiring a card. With an evidence file id the payment
// screenshot is stored first and attached to the purchase.
func (s *CatalogService) Purchase(ctx context.Context, buyerChatID, cardID int64, evidenceFileID string, fetcher FileFetcher) (*domain.Purchase, error) {
	buyer, err := s.GetOrCreateUser(ctx, buyerChatID, "")
	if err != nil {
		return nil, err
	}

	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}

	var evidencePath string
	if evidenceFileID != "" {
		evidencePath, err = s.saveFile(ctx, fetcher, evidenceFileID, func(r io.Reader) (string, error) {
			return s.media.SavePurchaseEvidence(card.ID, r)
		})
		if err != nil {
			return nil, err
		}
	}

	purchase, err := s.RecordPurchase(ctx, buyer.ID, card, evidencePath)
	if err != nil {
		if evidencePath != "" {
			s.discard(evidencePath)
		}
		return nil, err
	}
	return purchase, nil
}

// RecordPurchase inserts a purchase with a fresh token, retrying once on a token collision
func (s *CatalogService) RecordPurchase(ctx context.Context, userID int64, card *domain.Card, evidencePath string) (*domain.Purchase, error) {
	const attempts = 2

	var err error
	for i := 0; i < attempts; i++ {
		var purchase *domain.Purchase
		purchase, err = s.purchases.Create(ctx, &domain.Purchase{
			UserID:       userID,
			CardID:       card.ID,
			Token:        s.newToken(),
			Amount:       card.Price,
			EvidencePath: evidencePath,
		})
		if err == nil {
			s.logger.Info("Purchase recorded",
				zap.Int64("purchase_id", purchase.ID),
				zap.Int64("user_id", userID),
				zap.Int64("card_id", card.ID),
				zap.Float64("amount", purchase.Amount),
			)
			return purchase, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		s.logger.Warn("Purchase token collision, retrying", zap.Int64("card_id", card.ID))
	}

	return nil, err
}

// ListShopsByOwner returns the shops a user owns
func (s *CatalogService) ListShopsByOwner(ctx context.Context, ownerID int64) ([]domain.Shop, error) {
	return s.shops.ListByOwner(ctx, ownerID)
}

// ListCardsByShop returns a shop's cards
func (s *CatalogService) ListCardsByShop(ctx context.Context, shopID int64) ([]domain.Card, error) {
	return s.cards.ListByShop(ctx, shopID)
}

// ListPurchasesByUser returns a user's purchases, newest first
func (s *CatalogService) ListPurchasesByUser(ctx context.Context, userID int64) ([]domain.Purchase, error) {
	return s.purchases.ListByUser(ctx, userID)
}

// SumPurchasesByUser returns how much a user has spent
func (s *CatalogService) SumPurchasesByUser(ctx context.Context, userID int64) (float64, error) {
	return s.purchases.SumByUser(ctx, userID)
}

// CountPurchasesByShop returns how many purchases a shop has had
func (s *CatalogService) CountPurchasesByShop(ctx context.Context, shopID int64) (int, error) {
	return s.purchases.CountByShop(ctx, shopID)
}

func (s *CatalogService) saveFile(ctx context.Context, fetcher FileFetcher, fileID string, save func(io.Reader) (string, error)) (string, error) {
	rc, err := fetcher.Fetch(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer rc.Close()

	return save(rc)
}

func (s *CatalogService) discard(path string) {
	if err := s.media.Remove(path); err != nil {
		s.logger.Warn("Failed to remove orphaned media", zap.String("path", path), zap.Error(err))
	}
}
