package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cardshop/internal/conversation"
	"cardshop/internal/domain"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Manager callback prefixes
const (
	browsePrefix  = "browse_"
	myShopPrefix  = "myshop_"
	addCardPrefix = "addcard_"
)

// ManagerHandler serves the manager bot: shop creation, browsing every shop and seller tools
type ManagerHandler struct {
	*Handler
	createShop *conversation.Engine
	purchase   *conversation.Engine
	addCard    *conversation.Engine
}

// NewManagerHandler creates the manager bot handler
func NewManagerHandler(bot *tele.Bot, deps Deps, logger *zap.Logger) *ManagerHandler {
	h := &ManagerHandler{Handler: newHandler(bot, deps, logger)}
	h.createShop = h.addEngine(CreateShopFlow(deps.Catalog))
	h.purchase = h.addEngine(PurchaseFlow(deps.Catalog, deps.Receipts, h.files, deps.Policy))
	h.addCard = h.addEngine(AddCardFlow(deps.Catalog, h.files))
	return h
}

// RegisterHandlers registers all bot handlers
func (h *ManagerHandler) RegisterHandlers() {
	// Commands
	h.bot.Handle("/start", h.handleStart)
	h.bot.Handle("/dashboard", h.handleDashboard)
	h.bot.Handle("/tokens", h.handleTokens)
	h.bot.Handle("/cancel", h.handleCancel)

	// Flow input
	h.bot.Handle(tele.OnText, h.handleInput)
	h.bot.Handle(tele.OnPhoto, h.handleInput)
	h.bot.Handle(tele.OnContact, h.handleContact)

	h.bot.Handle(tele.OnCallback, h.handleCallback)
}

func (h *ManagerHandler) handleStart(c tele.Context) error {
	h.logger.Info("User started manager bot",
		zap.Int64("user_id", c.Sender().ID),
		zap.String("username", c.Sender().Username),
	)
	return h.sendPrompt(c, conversation.Prompt{
		Text:           "👋 Welcome! Share your contact to get started, then open /dashboard.",
		RequestContact: true,
	})
}

func (h *ManagerHandler) handleContact(c tele.Context) error {
	if handled, err := h.advance(c); handled {
		return err
	}
	return c.Send("✅ Thanks! Open /dashboard to continue.", &tele.ReplyMarkup{RemoveKeyboard: true})
}

func (h *ManagerHandler) handleDashboard(c tele.Context) error {
	markup := &tele.ReplyMarkup{}
	return h.showDashboard(c, []tele.Row{
		markup.Row(markup.Data("🏬 New full shop", cbCustomerNewFull)),
		markup.Row(markup.Data("🃏 New single card", cbCustomerNewOne)),
		markup.Row(markup.Data("🛒 Browse shops", cbCustomerBrowse)),
		markup.Row(markup.Data("📦 My shops", cbCustomerMyShops)),
		markup.Row(markup.Data("🎟 My tokens", cbCustomerTokens)),
	})
}

func (h *ManagerHandler) handleInput(c tele.Context) error {
	handled, err := h.advance(c)
	if handled {
		return err
	}

	if m := c.Message(); m != nil && strings.HasPrefix(m.Text, "/") {
		return nil
	}
	return c.Send("Open /dashboard to see what you can do.")
}

// handleCallback handles ALL callback queries
func (h *ManagerHandler) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}
	data := cleanCallbackData(callback.Data)

	switch data {
	case cbMainMenu:
		return h.handleDashboard(c)
	case cbCustomerNewFull:
		return h.handleNewShop(c, true)
	case cbCustomerNewOne:
		return h.handleNewShop(c, false)
	case cbCustomerBrowse:
		return h.handleBrowse(c)
	case cbCustomerMyShops:
		return h.handleMyShops(c)
	}

	if handled, err := h.handleMenuCallback(c, data); handled {
		return err
	}

	// Handle by Data prefix (dynamic buttons)
	switch {
	case strings.HasPrefix(data, browsePrefix):
		return h.handleBrowseShop(c, data)
	case strings.HasPrefix(data, myShopPrefix):
		return h.handleMyShop(c, data)
	case strings.HasPrefix(data, addCardPrefix):
		return h.handleAddCard(c, data)
	}

	if handled, err := h.advance(c); handled {
		return err
	}

	h.logger.Warn("Unhandled callback", zap.String("data", data))
	return c.Respond(&tele.CallbackResponse{Text: "This button has expired"})
}

func (h *ManagerHandler) handleNewShop(c tele.Context, fullAccess bool) error {
	user, err := h.currentUser(c)
	if err != nil {
		return h.replyError(c, err)
	}
	return h.startFlow(c, h.createShop, map[string]any{
		keyOwnerID:    user.ID,
		keyFullAccess: fullAccess,
	})
}

// handleBrowse lists every shop
func (h *ManagerHandler) handleBrowse(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	shops, err := h.deps.Admin.ListShops(ctx)
	if err != nil {
		return h.replyError(c, err)
	}
	if len(shops) == 0 {
		return h.show(c, "🏬 No shops yet.", backMarkup())
	}
	return h.show(c, "🛒 Pick a shop:", shopsMarkup(shops, browsePrefix))
}

func (h *ManagerHandler) handleBrowseShop(c tele.Context, data string) error {
	shopID, ok := parseID(data, browsePrefix)
	if !ok {
		return c.Respond()
	}
	return h.startFlow(c, h.purchase, map[string]any{keyShopID: shopID})
}

func (h *ManagerHandler) handleMyShops(c tele.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return h.replyError(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	shops, err := h.deps.Catalog.ListShopsByOwner(ctx, user.ID)
	if err != nil {
		return h.replyError(c, err)
	}
	if len(shops) == 0 {
		return h.show(c, "📦 You have no shops yet.", backMarkup())
	}
	return h.show(c, "📦 Your shops:", shopsMarkup(shops, myShopPrefix))
}

// handleMyShop shows one of the user's shops with its sales
func (h *ManagerHandler) handleMyShop(c tele.Context, data string) error {
	shop, err := h.ownedShop(c, data, myShopPrefix)
	if err != nil {
		return h.replyError(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	cards, err := h.deps.Catalog.ListCardsByShop(ctx, shop.ID)
	if err != nil {
		return h.replyError(c, err)
	}
	sales, err := h.deps.Catalog.CountPurchasesByShop(ctx, shop.ID)
	if err != nil {
		return h.replyError(c, err)
	}

	markup := &tele.ReplyMarkup{}
	markup.Inline(
		markup.Row(markup.Data("➕ Add card", addCardPrefix+strconv.FormatInt(shop.ID, 10))),
		markup.Row(btnBack),
	)
	return h.show(c, formatMyShop(shop, cards, sales), markup)
}

func (h *ManagerHandler) handleAddCard(c tele.Context, data string) error {
	shop, err := h.ownedShop(c, data, addCardPrefix)
	if err != nil {
		return h.replyError(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	if _, err := h.deps.Catalog.CheckCardLimit(ctx, shop.ID); err != nil {
		return h.replyError(c, err)
	}
	return h.startFlow(c, h.addCard, map[string]any{keyShopID: shop.ID})
}

// ownedShop resolves the shop named in data among the user's own shops
func (h *ManagerHandler) ownedShop(c tele.Context, data, prefix string) (*domain.Shop, error) {
	shopID, ok := parseID(data, prefix)
	if !ok {
		return nil, domain.NewValidationError("shop", "unknown shop")
	}

	user, err := h.currentUser(c)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	shops, err := h.deps.Catalog.ListShopsByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for i := range shops {
		if shops[i].ID == shopID {
			return &shops[i], nil
		}
	}
	return nil, fmt.Errorf("shop %d of user %d: %w", shopID, user.ID, domain.ErrNotFound)
}

func shopsMarkup(shops []domain.Shop, prefix string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(shops)+1)
	for _, shop := range shops {
		rows = append(rows, markup.Row(markup.Data(shop.Name, prefix+strconv.FormatInt(shop.ID, 10))))
	}
	rows = append(rows, markup.Row(btnBack))
	markup.Inline(rows...)
	return markup
}

func formatMyShop(shop *domain.Shop, cards []domain.Card, sales int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏬 %s\n\n", shop.Name)
	if len(cards) == 0 {
		b.WriteString("No cards yet.\n")
	}
	for _, card := range cards {
		fmt.Fprintf(&b, "• %s\n", card.Label())
	}
	fmt.Fprintf(&b, "\nSales: %d", sales)
	return b.String()
}
