package service

import (
	"context"

	"cardshop/internal/domain"
	"cardshop/internal/repository"

	"go.uber.org/zap"
)

// AdminService serves the read-only admin views
type AdminService struct {
	shops     repository.ShopRepository
	purchases repository.PurchaseRepository
	logger    *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(shops repository.ShopRepository, purchases repository.PurchaseRepository, logger *zap.Logger) *AdminService {
	return &AdminService{
		shops:     shops,
		purchases: purchases,
		logger:    logger,
	}
}

// ListShops returns every shop
func (s *AdminService) ListShops(ctx context.Context) ([]domain.Shop, error) {
	return s.shops.List(ctx)
}

// ListPurchases returns the whole purchase ledger, newest first
func (s *AdminService) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return s.purchases.List(ctx)
}

// PurchasesPage returns one page of the purchase ledger and the total page count
func (s *AdminService) PurchasesPage(ctx context.Context, page int) ([]domain.Purchase, int, error) {
	const pageSize = 10

	if page < 1 {
		page = 1
	}

	all, err := s.purchases.List(ctx)
	if err != nil {
		return nil, 0, err
	}

	// Calculate total pages
	totalPages := (len(all) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	return all[start:end], totalPages, nil
}

// Leaderboard returns buyers ordered by total spent, highest first
func (s *AdminService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	entries, err := s.purchases.Leaderboard(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to build leaderboard", zap.Error(err))
		return nil, err
	}
	return entries, nil
}

// SalesByShop returns the purchase count of every shop
func (s *AdminService) SalesByShop(ctx context.Context) ([]domain.ShopSales, error) {
	return s.purchases.SalesByShop(ctx)
}
