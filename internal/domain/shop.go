package domain

import (
	"fmt"
	"time"
)

// Shop is a seller's storefront served by one shop bot
type Shop struct {
	ID         int64
	OwnerID    int64
	Name       string
	FullAccess bool
	CreatedAt  time.Time
}

// Card is a single sellable item within a shop
type Card struct {
	ID        int64
	ShopID    int64
	Title     string  `validate:"required,max=128"`
	ImagePath string  `validate:"required"`
	Price     float64 `validate:"gte=0,lte=9999999999.99"`
	CreatedAt time.Time
}

// Label returns the text shown on a card's selection button
func (c Card) Label() string {
	return fmt.Sprintf("%s — %s", c.Title, FormatPrice(c.Price))
}

// Purchase is the immutable receipt of a buyer acquiring a card
type Purchase struct {
	ID           int64
	UserID       int64
	CardID       int64
	Token        string
	Amount       float64
	EvidencePath string
	CreatedAt    time.Time
}

// LeaderboardEntry is one row of the spend leaderboard
type LeaderboardEntry struct {
	TelegramID int64   `json:"user_id"`
	TotalSpent float64 `json:"total_spent"`
}

// ShopSales is the number of purchases recorded against a shop's cards
type ShopSales struct {
	ShopID    int64  `json:"shop_id"`
	ShopName  string `json:"shop_name"`
	Purchases int    `json:"purchases"`
}

// PurchasePolicy decides when a purchase token is issued
type PurchasePolicy string

const (
	// PurchaseInstant issues the token as soon as a card is selected
	PurchaseInstant PurchasePolicy = "instant"
	// PurchaseScreenshot issues the token after the buyer uploads a payment screenshot
	PurchaseScreenshot PurchasePolicy = "screenshot"
)

// Valid reports whether the policy is a known one
func (p PurchasePolicy) Valid() bool {
	return p == PurchaseInstant || p == PurchaseScreenshot
}
