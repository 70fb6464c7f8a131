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

// ShopHandler serves the bot of a single shop
type ShopHandler struct {
	*Handler
	shop     *domain.Shop
	purchase *conversation.Engine
	addCard  *conversation.Engine
}

// NewShopHandler creates the handler for shop's bot
func NewShopHandler(bot *tele.Bot, deps Deps, shop *domain.Shop, logger *zap.Logger) *ShopHandler {
	h := &ShopHandler{
		Handler: newHandler(bot, deps, logger.With(zap.Int64("shop_id", shop.ID))),
		shop:    shop,
	}
	h.purchase = h.addEngine(PurchaseFlow(deps.Catalog, deps.Receipts, h.files, deps.Policy))
	h.addCard = h.addEngine(AddCardFlow(deps.Catalog, h.files))
	return h
}

// Shop returns the shop this bot sells for
func (h *ShopHandler) Shop() *domain.Shop {
	return h.shop
}

// RegisterHandlers registers all bot handlers
func (h *ShopHandler) RegisterHandlers() {
	// Commands
	h.bot.Handle("/start", h.handleStart)
	h.bot.Handle("/dashboard", h.handleDashboard)
	h.bot.Handle("/shop", h.handleCatalog)
	h.bot.Handle("/purchase", h.handlePurchase)
	h.bot.Handle("/upload_card", h.handleUploadCard)
	h.bot.Handle("/tokens", h.handleTokens)
	h.bot.Handle("/cancel", h.handleCancel)

	// Flow input
	h.bot.Handle(tele.OnText, h.handleInput)
	h.bot.Handle(tele.OnPhoto, h.handleInput)
	h.bot.Handle(tele.OnContact, h.handleInput)

	h.bot.Handle(tele.OnCallback, h.handleCallback)
}

// canManage reports whether user may change this shop
func (h *ShopHandler) canManage(user *domain.User) bool {
	return user.IsAdmin || user.ID == h.shop.OwnerID
}

func (h *ShopHandler) handleStart(c tele.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return h.replyError(c, err)
	}

	h.logger.Info("User started shop bot", zap.Int64("user_id", c.Sender().ID))
	return c.Send(welcomeText(h.shop, h.canManage(user)), h.customerMarkup(user))
}

func welcomeText(shop *domain.Shop, manager bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👋 Welcome to %s!\n\n", shop.Name)
	b.WriteString("/shop to see the cards\n/purchase to buy one\n/tokens for your purchases\n")
	if manager {
		b.WriteString("/upload_card to add a card\n")
	}
	return b.String()
}

func (h *ShopHandler) customerMarkup(user *domain.User) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(h.customerRows(markup, user)...)
	return markup
}

func (h *ShopHandler) customerRows(markup *tele.ReplyMarkup, user *domain.User) []tele.Row {
	rows := []tele.Row{
		markup.Row(markup.Data("🛒 Browse cards", cbCustomerBrowse)),
		markup.Row(markup.Data("🎟 My tokens", cbCustomerTokens)),
	}
	if h.canManage(user) {
		rows = append(rows, markup.Row(markup.Data("➕ Add card", cbCustomerAddCard)))
	}
	return rows
}

func (h *ShopHandler) handleDashboard(c tele.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return h.replyError(c, err)
	}
	return h.showDashboard(c, h.customerRows(&tele.ReplyMarkup{}, user))
}

// handleCatalog lists the shop's cards as text
func (h *ShopHandler) handleCatalog(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	cards, err := h.deps.Catalog.ListCardsByShop(ctx, h.shop.ID)
	if err != nil {
		return h.replyError(c, err)
	}
	return c.Send(formatCatalog(h.shop, cards))
}

func formatCatalog(shop *domain.Shop, cards []domain.Card) string {
	if len(cards) == 0 {
		return fmt.Sprintf("🏬 %s has no cards yet.", shop.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏬 %s\n\n", shop.Name)
	for _, card := range cards {
		fmt.Fprintf(&b, "%d. %s\n", card.ID, card.Label())
	}
	b.WriteString("\nBuy with /purchase <number>")
	return b.String()
}

// handlePurchase starts a purchase, jumping straight to the card given as argument
func (h *ShopHandler) handlePurchase(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return h.startFlow(c, h.purchase, h.seed())
	}

	cardID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || cardID <= 0 {
		return c.Send("Usage: /purchase <card number>. See /shop for the numbers.")
	}
	return h.purchaseCard(c, cardID)
}

// purchaseCard runs the purchase flow with the card already chosen
func (h *ShopHandler) purchaseCard(c tele.Context, cardID int64) error {
	userID := c.Sender().ID
	h.cancelOthers(userID, h.purchase)

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	if _, err := h.purchase.Start(ctx, userID, h.seed()); err != nil {
		return h.replyError(c, err)
	}
	reply, err := h.purchase.Advance(ctx, userID, conversation.Input{
		Kind: conversation.KindChoice,
		Data: buyData(cardID),
	})
	if err != nil {
		h.purchase.Cancel(userID)
		return h.replyError(c, err)
	}
	if c.Callback() != nil {
		_ = c.Respond()
	}
	return h.sendPrompt(c, reply.Prompt)
}

func (h *ShopHandler) handleUploadCard(c tele.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return h.replyError(c, err)
	}
	if !h.canManage(user) {
		return c.Send("⛔ Only the shop owner can add cards.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	if _, err := h.deps.Catalog.CheckCardLimit(ctx, h.shop.ID); err != nil {
		return h.replyError(c, err)
	}

	return h.startFlow(c, h.addCard, h.seed())
}

func (h *ShopHandler) seed() map[string]any {
	return map[string]any{keyShopID: h.shop.ID}
}

func (h *ShopHandler) handleInput(c tele.Context) error {
	handled, err := h.advance(c)
	if handled {
		return err
	}

	if m := c.Message(); m != nil && strings.HasPrefix(m.Text, "/") {
		return nil
	}
	return c.Send("Send /shop to see the cards or /purchase to buy one.")
}

// handleCallback handles ALL callback queries
func (h *ShopHandler) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}
	data := cleanCallbackData(callback.Data)

	switch data {
	case cbMainMenu:
		return h.handleDashboard(c)
	case cbCustomerBrowse:
		return h.startFlow(c, h.purchase, h.seed())
	case cbCustomerAddCard:
		_ = c.Respond()
		return h.handleUploadCard(c)
	}

	if handled, err := h.handleMenuCallback(c, data); handled {
		return err
	}
	if handled, err := h.advance(c); handled {
		return err
	}

	// A card button from an earlier message
	if cardID, ok := parseID(data, buyPrefix); ok {
		return h.purchaseCard(c, cardID)
	}

	h.logger.Warn("Unhandled callback", zap.String("data", data))
	return c.Respond(&tele.CallbackResponse{Text: "This button has expired"})
}
