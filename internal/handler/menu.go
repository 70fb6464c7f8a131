package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cardshop/internal/domain"
	"cardshop/internal/middleware"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Dashboard callback data
const (
	cbAdminShops       = "admin_shops"
	cbAdminLeaderboard = "admin_lb"
	cbAdminSales       = "admin_sales"
	cbAdminPurchases   = "admin_purchases"
	cbCustomerTokens   = "cust_tokens"
	cbCustomerBrowse   = "cust_browse"
	cbCustomerMyShops  = "cust_myshops"
	cbCustomerNewFull  = "cust_new_full"
	cbCustomerNewOne   = "cust_new_single"
	cbCustomerAddCard  = "cust_addcard"
	cbMainMenu         = "main_menu"

	purchasesPagePrefix = "purchases_page_"
)

const leaderboardSize = 10

var btnBack = tele.Btn{
	Unique: cbMainMenu,
	Text:   "⬅️ Back",
}

// currentUser returns the user attached by the middleware, creating it if missing
func (h *Handler) currentUser(c tele.Context) (*domain.User, error) {
	if user, ok := c.Get(middleware.UserKey).(*domain.User); ok && user != nil {
		return user, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()
	return h.deps.Catalog.GetOrCreateUser(ctx, c.Sender().ID, "")
}

// showDashboard renders the admin menu for the admin and customer rows for everyone else
func (h *Handler) showDashboard(c tele.Context, customer []tele.Row) error {
	user, err := h.currentUser(c)
	if err != nil {
		return h.replyError(c, err)
	}

	markup := &tele.ReplyMarkup{}
	text := "📋 Dashboard"
	if user.IsAdmin {
		text = "🛠 Admin dashboard"
		markup.Inline(adminRows(markup)...)
	} else {
		markup.Inline(customer...)
	}
	return h.show(c, text, markup)
}

func adminRows(markup *tele.ReplyMarkup) []tele.Row {
	return []tele.Row{
		markup.Row(markup.Data("🏬 All shops", cbAdminShops)),
		markup.Row(markup.Data("🏆 Leaderboard", cbAdminLeaderboard)),
		markup.Row(markup.Data("🧾 Purchases", cbAdminPurchases)),
		markup.Row(markup.Data("📈 Sales by shop", cbAdminSales)),
	}
}

// handleMenuCallback serves the callbacks every bot shares. It reports false for anything else.
func (h *Handler) handleMenuCallback(c tele.Context, data string) (bool, error) {
	switch data {
	case cbAdminShops, cbAdminLeaderboard, cbAdminSales, cbAdminPurchases:
	case cbCustomerTokens:
		return true, h.handleTokens(c)
	default:
		if !strings.HasPrefix(data, purchasesPagePrefix) {
			return false, nil
		}
	}

	user, err := h.currentUser(c)
	if err != nil {
		return true, h.replyError(c, err)
	}
	if !user.IsAdmin {
		return true, c.Respond(&tele.CallbackResponse{Text: "⛔ Admins only", ShowAlert: true})
	}

	switch data {
	case cbAdminShops:
		return true, h.handleAdminShops(c)
	case cbAdminLeaderboard:
		return true, h.handleLeaderboard(c)
	case cbAdminSales:
		return true, h.handleSales(c)
	case cbAdminPurchases:
		return true, h.handlePurchasesPage(c, 1)
	default:
		page, err := strconv.Atoi(strings.TrimPrefix(data, purchasesPagePrefix))
		if err != nil || page < 1 {
			h.logger.Warn("Invalid page number", zap.String("data", data))
			return true, c.Respond()
		}
		return true, h.handlePurchasesPage(c, page)
	}
}

func (h *Handler) handleAdminShops(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	shops, err := h.deps.Admin.ListShops(ctx)
	if err != nil {
		return h.replyError(c, err)
	}
	return h.show(c, formatShops(shops), backMarkup())
}

func (h *Handler) handleLeaderboard(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	entries, err := h.deps.Admin.Leaderboard(ctx, leaderboardSize)
	if err != nil {
		return h.replyError(c, err)
	}
	return h.show(c, formatLeaderboard(entries), backMarkup())
}

func (h *Handler) handleSales(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	sales, err := h.deps.Admin.SalesByShop(ctx)
	if err != nil {
		return h.replyError(c, err)
	}
	return h.show(c, formatSales(sales), backMarkup())
}

// handlePurchasesPage shows one page of all purchases with navigation
func (h *Handler) handlePurchasesPage(c tele.Context, page int) error {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	purchases, totalPages, err := h.deps.Admin.PurchasesPage(ctx, page)
	if err != nil {
		return h.replyError(c, err)
	}

	if len(purchases) == 0 {
		return h.show(c, "🧾 No purchases yet.", backMarkup())
	}

	markup := &tele.ReplyMarkup{}
	rows := []tele.Row{}
	if nav := pageNav(markup, page, totalPages); len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, markup.Row(btnBack))
	markup.Inline(rows...)

	return h.show(c, formatPurchases(purchases, page, totalPages), markup)
}

// handleTokens lists the purchase tokens of the current user
func (h *Handler) handleTokens(c tele.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return h.replyError(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	purchases, err := h.deps.Catalog.ListPurchasesByUser(ctx, user.ID)
	if err != nil {
		return h.replyError(c, err)
	}
	total, err := h.deps.Catalog.SumPurchasesByUser(ctx, user.ID)
	if err != nil {
		return h.replyError(c, err)
	}
	return h.show(c, formatTokens(purchases, total), backMarkup())
}

func backMarkup() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(btnBack))
	return markup
}

// pageNav builds the previous/next row, empty for a single page
func pageNav(markup *tele.ReplyMarkup, page, totalPages int) tele.Row {
	row := tele.Row{}
	if page > 1 {
		row = append(row, markup.Data("⬅️", purchasesPagePrefix+strconv.Itoa(page-1)))
	}
	if page < totalPages {
		row = append(row, markup.Data("➡️", purchasesPagePrefix+strconv.Itoa(page+1)))
	}
	return row
}

func formatShops(shops []domain.Shop) string {
	if len(shops) == 0 {
		return "🏬 No shops yet."
	}
	var b strings.Builder
	b.WriteString("🏬 Shops:\n\n")
	for i, shop := range shops {
		plan := "single"
		if shop.FullAccess {
			plan = "full"
		}
		fmt.Fprintf(&b, "%d. %s (owner #%d, %s)\n", i+1, shop.Name, shop.OwnerID, plan)
	}
	return b.String()
}

func formatLeaderboard(entries []domain.LeaderboardEntry) string {
	if len(entries) == 0 {
		return "🏆 No purchases yet."
	}
	var b strings.Builder
	b.WriteString("🏆 Top buyers:\n\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %d: %s\n", i+1, e.TelegramID, domain.FormatPrice(e.TotalSpent))
	}
	return b.String()
}

func formatSales(sales []domain.ShopSales) string {
	if len(sales) == 0 {
		return "📈 No shops yet."
	}
	var b strings.Builder
	b.WriteString("📈 Sales by shop:\n\n")
	for _, s := range sales {
		fmt.Fprintf(&b, "%s: %d\n", s.ShopName, s.Purchases)
	}
	return b.String()
}

func formatPurchases(purchases []domain.Purchase, page, totalPages int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Purchases (page %d/%d):\n\n", page, totalPages)
	for _, p := range purchases {
		fmt.Fprintf(&b, "#%d card %d, %s, %s, %s\n",
			p.ID, p.CardID, domain.FormatPrice(p.Amount), p.Token, p.CreatedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

func formatTokens(purchases []domain.Purchase, total float64) string {
	if len(purchases) == 0 {
		return "🎟 You have no purchases yet."
	}
	var b strings.Builder
	b.WriteString("🎟 Your tokens:\n\n")
	for _, p := range purchases {
		fmt.Fprintf(&b, "%s (card %d, %s)\n", p.Token, p.CardID, domain.FormatPrice(p.Amount))
	}
	fmt.Fprintf(&b, "\nTotal spent: %s", domain.FormatPrice(total))
	return b.String()
}
