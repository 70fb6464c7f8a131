package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cardshop/internal/conversation"
	"cardshop/internal/domain"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// launchWait bounds how long a seller is kept waiting for the launch outcome
const launchWait = 2 * time.Minute

// RegistrationHandler serves the registration bot
type RegistrationHandler struct {
	*Handler
	register *conversation.Engine
	notifier *BotNotifier
	watch    LaunchWatcher
}

// NewRegistrationHandler creates the registration bot handler
func NewRegistrationHandler(bot *tele.Bot, deps Deps, logger *zap.Logger) *RegistrationHandler {
	h := &RegistrationHandler{
		Handler:  newHandler(bot, deps, logger),
		notifier: NewBotNotifier(bot),
	}
	h.watch = h.watchLaunch
	h.register = h.addEngine(RegistrationFlow(deps.Registrations, deps.Catalog, h.files,
		func(chatID int64, cred domain.Credential, launched <-chan error) {
			h.watch(chatID, cred, launched)
		}))
	return h
}

// RegisterHandlers registers all bot handlers
func (h *RegistrationHandler) RegisterHandlers() {
	// Commands
	h.bot.Handle("/start", h.handleStart)
	h.bot.Handle("/register", h.handleStart)
	h.bot.Handle("/relaunch", h.handleRelaunch)
	h.bot.Handle("/dashboard", h.handleDashboard)
	h.bot.Handle("/cancel", h.handleCancel)

	// Flow input
	h.bot.Handle(tele.OnText, h.handleInput)
	h.bot.Handle(tele.OnPhoto, h.handleInput)
	h.bot.Handle(tele.OnContact, h.handleInput)

	h.bot.Handle(tele.OnCallback, h.handleCallback)
}

func (h *RegistrationHandler) handleStart(c tele.Context) error {
	h.logger.Info("Seller started registration",
		zap.Int64("user_id", c.Sender().ID),
		zap.String("username", c.Sender().Username),
	)
	return h.startFlow(c, h.register, nil)
}

// handleRelaunch restarts the sender's registered shop bots without a new registration
func (h *RegistrationHandler) handleRelaunch(c tele.Context) error {
	chatID := c.Sender().ID

	creds, err := h.deps.Registrations.CredentialsOf(chatID)
	if err != nil {
		return h.replyError(c, err)
	}
	if len(creds) == 0 {
		return c.Send("You have no registered shop bot yet. Send /start to register.")
	}

	for _, cred := range creds {
		launched, err := h.deps.Registrations.Relaunch(cred)
		if err != nil {
			return h.replyError(c, err)
		}
		h.logger.Info("Seller relaunched shop bot", zap.Int64("user_id", chatID), zap.Stringer("credential", cred))
		h.watch(chatID, cred, launched)
	}
	return c.Send(fmt.Sprintf("🔄 Starting %d shop bot(s), I will message you when they are up.", len(creds)))
}

func (h *RegistrationHandler) handleDashboard(c tele.Context) error {
	markup := &tele.ReplyMarkup{}
	return h.showDashboard(c, []tele.Row{
		markup.Row(markup.Data("🎟 My tokens", cbCustomerTokens)),
	})
}

func (h *RegistrationHandler) handleInput(c tele.Context) error {
	handled, err := h.advance(c)
	if handled {
		return err
	}

	if m := c.Message(); m != nil && strings.HasPrefix(m.Text, "/") {
		return nil
	}
	return c.Send("Send /start to register your shop.")
}

// handleCallback handles ALL callback queries
func (h *RegistrationHandler) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}
	data := cleanCallbackData(callback.Data)

	if data == cbMainMenu {
		return h.handleDashboard(c)
	}
	if handled, err := h.handleMenuCallback(c, data); handled {
		return err
	}
	if handled, err := h.advance(c); handled {
		return err
	}

	h.logger.Warn("Unhandled callback", zap.String("data", data))
	return c.Respond(&tele.CallbackResponse{Text: "This button has expired, send /start"})
}

// watchLaunch tells the seller whether their shop bot came up
func (h *RegistrationHandler) watchLaunch(chatID int64, cred domain.Credential, launched <-chan error) {
	go func() {
		var text string
		select {
		case err := <-launched:
			if err != nil {
				h.logger.Warn("Shop bot failed to launch",
					zap.Int64("user_id", chatID),
					zap.Stringer("credential", cred),
					zap.Error(err),
				)
				text = "❌ Your shop bot could not start. Check the token with @BotFather, then send /relaunch to try again."
			} else {
				text = "✅ Your shop bot is live! Open it and send /start."
			}
		case <-time.After(launchWait):
			text = "⏳ Your shop bot is still starting, please give it a few minutes."
		}

		if err := h.notifier.Notify(context.Background(), chatID, text); err != nil {
			h.logger.Warn("Failed to send launch result", zap.Int64("user_id", chatID), zap.Error(err))
		}
	}()
}
