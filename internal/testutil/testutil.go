package testutil

import (
	"io"
	"strings"
	"time"

	"cardshop/internal/domain"

	"go.uber.org/zap"
)

// NewTestLogger creates a no-op logger for tests
func NewTestLogger() *zap.Logger {
	return zap.NewNop()
}

// NewTestUser creates a test user
func NewTestUser(id, telegramID int64) *domain.User {
	return &domain.User{
		ID:         id,
		TelegramID: telegramID,
		CreatedAt:  time.Now(),
	}
}

// NewTestShop creates a test shop
func NewTestShop(id, ownerID int64, name string) *domain.Shop {
	return &domain.Shop{
		ID:         id,
		OwnerID:    ownerID,
		Name:       name,
		FullAccess: true,
		CreatedAt:  time.Now(),
	}
}

// NewTestCard creates a test card
func NewTestCard(id, shopID int64, title string, price float64) *domain.Card {
	return &domain.Card{
		ID:        id,
		ShopID:    shopID,
		Title:     title,
		ImagePath: "media/cards/" + title + ".jpg",
		Price:     price,
		CreatedAt: time.Now(),
	}
}

// NewTestFile returns file contents as a ReadCloser, like a downloaded photo
func NewTestFile(content string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(content))
}

// ResolvedLaunch returns an already-resolved launch result channel
func ResolvedLaunch(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}
