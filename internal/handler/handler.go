package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode"

	"cardshop/internal/conversation"
	"cardshop/internal/domain"
	"cardshop/internal/service"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// updateTimeout bounds the work done for a single update
const updateTimeout = 30 * time.Second

const (
	msgGenericError = "Something went wrong. Please try again later."
	msgNotFound     = "❌ Not found. It may have been removed."
)

// Deps are the services the bot handlers work with
type Deps struct {
	Catalog       *service.CatalogService
	Admin         *service.AdminService
	Receipts      *service.ReceiptService
	Registrations *service.RegistrationService
	Policy        domain.PurchasePolicy
	Logger        *zap.Logger
}

// Handler holds what every bot shares: its transport, its conversation engines
// and the dashboard menu
type Handler struct {
	bot     *tele.Bot
	deps    Deps
	files   *TelegramFiles
	logger  *zap.Logger
	engines []*conversation.Engine
}

func newHandler(bot *tele.Bot, deps Deps, logger *zap.Logger) *Handler {
	return &Handler{
		bot:    bot,
		deps:   deps,
		files:  NewTelegramFiles(bot),
		logger: logger,
	}
}

// addEngine creates a session engine for flow owned by this bot
func (h *Handler) addEngine(flow *conversation.Flow) *conversation.Engine {
	e := conversation.NewEngine(flow, h.logger)
	h.engines = append(h.engines, e)
	return e
}

// Sweep drops sessions idle for longer than idle across every flow of this bot
func (h *Handler) Sweep(idle time.Duration) int {
	dropped := 0
	for _, e := range h.engines {
		dropped += e.Sweep(idle)
	}
	return dropped
}

// startFlow begins e for the sender. Any other flow the sender is in on this bot is cancelled.
func (h *Handler) startFlow(c tele.Context, e *conversation.Engine, values map[string]any) error {
	userID := c.Sender().ID
	h.cancelOthers(userID, e)

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	reply, err := e.Start(ctx, userID, values)
	if err != nil {
		return h.replyError(c, err)
	}
	if c.Callback() != nil {
		_ = c.Respond()
	}
	return h.sendPrompt(c, reply.Prompt)
}

// cancelOthers drops the user's sessions in every flow except keep
func (h *Handler) cancelOthers(userID int64, keep *conversation.Engine) {
	for _, other := range h.engines {
		if other != keep && other.Cancel(userID) {
			h.logger.Debug("Cancelled flow for a new one",
				zap.Int64("user_id", userID),
				zap.String("cancelled", other.Flow().Name()),
				zap.String("started", keep.Flow().Name()),
			)
		}
	}
}

// advance feeds the update to the sender's active flow. It reports false when there is none.
func (h *Handler) advance(c tele.Context) (bool, error) {
	userID := c.Sender().ID
	in := inputFrom(c)

	for _, e := range h.engines {
		if !e.Active(userID) {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		reply, err := e.Advance(ctx, userID, in)
		cancel()

		if errors.Is(err, conversation.ErrNoSession) {
			continue
		}
		if c.Callback() != nil {
			_ = c.Respond()
		}
		if err != nil {
			return true, h.replyError(c, err)
		}
		return true, h.sendPrompt(c, reply.Prompt)
	}

	return false, nil
}

// cancelAll drops every flow of the user and reports whether one was active
func (h *Handler) cancelAll(userID int64) bool {
	cancelled := false
	for _, e := range h.engines {
		if e.Cancel(userID) {
			cancelled = true
		}
	}
	return cancelled
}

func (h *Handler) handleCancel(c tele.Context) error {
	if h.cancelAll(c.Sender().ID) {
		return c.Send("❎ Cancelled.", &tele.ReplyMarkup{RemoveKeyboard: true})
	}
	return c.Send("Nothing to cancel.")
}

// replyError tells the user what went wrong without leaking internals
func (h *Handler) replyError(c tele.Context, err error) error {
	if c.Callback() != nil {
		_ = c.Respond()
	}

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.Send("⚠️ " + ve.Reason)
	case errors.Is(err, domain.ErrNotFound):
		return c.Send(msgNotFound)
	default:
		h.logger.Error("Failed to handle update",
			zap.Int64("user_id", c.Sender().ID),
			zap.Error(err),
		)
		return c.Send(msgGenericError)
	}
}

// sendPrompt renders a conversation prompt
func (h *Handler) sendPrompt(c tele.Context, p conversation.Prompt) error {
	text := promptText(p)
	markup := promptMarkup(p)

	switch {
	case len(p.Image) > 0:
		return c.Send(&tele.Photo{File: tele.FromReader(bytes.NewReader(p.Image)), Caption: text}, markup)
	case p.ImagePath != "":
		return c.Send(&tele.Photo{File: tele.FromDisk(p.ImagePath), Caption: text}, markup)
	default:
		return c.Send(text, markup)
	}
}

func promptText(p conversation.Prompt) string {
	if p.Notice == "" {
		return p.Text
	}
	return "⚠️ " + p.Notice + "\n\n" + p.Text
}

func promptMarkup(p conversation.Prompt) *tele.ReplyMarkup {
	if p.RequestContact {
		menu := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
		menu.Reply(menu.Row(menu.Contact("📱 Share contact")))
		return menu
	}

	if len(p.Choices) == 0 {
		return &tele.ReplyMarkup{RemoveKeyboard: true}
	}

	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(p.Choices))
	for _, ch := range p.Choices {
		rows = append(rows, markup.Row(markup.Data(ch.Label, ch.Data)))
	}
	markup.Inline(rows...)
	return markup
}

// inputFrom normalizes an update into conversation input
func inputFrom(c tele.Context) conversation.Input {
	if cb := c.Callback(); cb != nil {
		return conversation.Input{Kind: conversation.KindChoice, Data: cleanCallbackData(cb.Data)}
	}

	m := c.Message()
	switch {
	case m == nil:
		return conversation.Input{Kind: conversation.KindText}
	case m.Photo != nil:
		return conversation.Input{Kind: conversation.KindPhoto, FileID: m.Photo.FileID, Text: m.Caption}
	case m.Contact != nil:
		return conversation.Input{Kind: conversation.KindContact, Phone: m.Contact.PhoneNumber}
	default:
		return conversation.Input{Kind: conversation.KindText, Text: strings.TrimSpace(m.Text)}
	}
}

// cleanCallbackData removes all non-printable characters from callback data
func cleanCallbackData(data string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, strings.TrimSpace(data))
}

// handleEditError handles errors from c.Edit() - if message is not modified, just acknowledge callback
// Otherwise, acknowledge callback and return error so caller can send new message
func (h *Handler) handleEditError(err error, c tele.Context) error {
	if err == nil {
		return nil
	}

	userID := c.Sender().ID
	if strings.Contains(err.Error(), "message is not modified") {
		h.logger.Debug("Message already up to date, acknowledging",
			zap.Int64("user_id", userID),
		)
		_ = c.Respond()
		return nil
	}

	h.logger.Warn("Failed to edit message, sending new",
		zap.Error(err),
		zap.Int64("user_id", userID),
	)
	if ackErr := c.Respond(); ackErr != nil {
		h.logger.Warn("Failed to acknowledge callback", zap.Error(ackErr))
	}
	return err
}

// show edits the callback's message in place, or sends a new one for commands
func (h *Handler) show(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if c.Callback() != nil {
		if err := c.Edit(text, markup); err != nil {
			if handleErr := h.handleEditError(err, c); handleErr == nil {
				return nil
			}
			return c.Send(text, markup)
		}
		return c.Respond()
	}
	return c.Send(text, markup)
}

// TelegramFiles downloads files users sent to a bot
type TelegramFiles struct {
	bot *tele.Bot
}

// NewTelegramFiles creates a downloader for bot
func NewTelegramFiles(bot *tele.Bot) *TelegramFiles {
	return &TelegramFiles{bot: bot}
}

// Fetch opens the file with the given id
func (f *TelegramFiles) Fetch(_ context.Context, fileID string) (io.ReadCloser, error) {
	return f.bot.File(&tele.File{FileID: fileID})
}

// BotNotifier sends plain messages through a bot
type BotNotifier struct {
	bot *tele.Bot
}

// NewBotNotifier creates a notifier sending through bot
func NewBotNotifier(bot *tele.Bot) *BotNotifier {
	return &BotNotifier{bot: bot}
}

// Notify sends text to chatID
func (n *BotNotifier) Notify(_ context.Context, chatID int64, text string) error {
	_, err := n.bot.Send(tele.ChatID(chatID), text)
	return err
}
