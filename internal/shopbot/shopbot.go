// Package shopbot builds the telegram bot that serves a registered shop.
package shopbot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cardshop/internal/domain"
	"cardshop/internal/handler"
	"cardshop/internal/middleware"
	"cardshop/internal/supervisor"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// RecordFinder looks up the registration behind a credential
type RecordFinder interface {
	Find(cred domain.Credential) (*domain.RegistrationRecord, error)
}

// Settings tune the bots a Factory builds
type Settings struct {
	// URL overrides the Bot API endpoint
	URL string
	// Offline skips the getMe call; the bot gets no username
	Offline        bool
	PollTimeout    time.Duration
	SweepInterval  time.Duration
	SessionIdleTTL time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.PollTimeout <= 0 {
		s.PollTimeout = 10 * time.Second
	}
	if s.SweepInterval <= 0 {
		s.SweepInterval = 10 * time.Minute
	}
	if s.SessionIdleTTL <= 0 {
		s.SessionIdleTTL = 24 * time.Hour
	}
	return s
}

// Factory launches shop bots for the supervisor
type Factory struct {
	records  RecordFinder
	deps     handler.Deps
	settings Settings
	logger   *zap.Logger
}

// NewFactory creates a shop bot factory
func NewFactory(records RecordFinder, deps handler.Deps, settings Settings, logger *zap.Logger) *Factory {
	return &Factory{
		records:  records,
		deps:     deps,
		settings: settings.withDefaults(),
		logger:   logger,
	}
}

var _ supervisor.Launcher = (*Factory)(nil)

// Launch connects the bot for cred, provisions its shop and returns it ready to run
func (f *Factory) Launch(ctx context.Context, cred domain.Credential) (supervisor.Instance, error) {
	rec, err := f.records.Find(cred)
	if err != nil {
		return nil, fmt.Errorf("registration: %w", err)
	}

	logger := f.logger.With(zap.Stringer("credential", cred))

	bot, err := tele.NewBot(tele.Settings{
		URL:         f.settings.URL,
		Token:       cred.Secret(),
		Poller:      &tele.LongPoller{Timeout: f.settings.PollTimeout},
		Synchronous: true,
		Offline:     f.settings.Offline,
		OnError: func(err error, c tele.Context) {
			logger.Error("Shop bot error", zap.String("error", cred.Redact(err.Error())))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect bot: %w", err)
	}

	shop, err := f.deps.Catalog.ProvisionShop(ctx, rec, shopName(bot, rec))
	if err != nil {
		return nil, fmt.Errorf("provision shop: %w", err)
	}

	h := handler.NewShopHandler(bot, f.deps, shop, logger)
	bot.Use(middleware.EnsureUser(f.deps.Catalog, logger))
	h.RegisterHandlers()

	logger.Info("Shop bot ready",
		zap.Int64("shop_id", shop.ID),
		zap.String("shop", shop.Name),
	)

	return &instance{
		bot:      bot,
		handler:  h,
		name:     shop.Name,
		settings: f.settings,
		logger:   logger,
		stop:     make(chan struct{}),
	}, nil
}

// shopName is the bot's username, or a stable name derived from the record for bots without one
func shopName(bot *tele.Bot, rec *domain.RegistrationRecord) string {
	if bot.Me != nil && bot.Me.Username != "" {
		return bot.Me.Username
	}
	return fmt.Sprintf("shop-%d-%s", rec.OwnerID, rec.CreatedAt.UTC().Format("20060102150405"))
}

// instance is a running shop bot plus its session sweeper
type instance struct {
	bot      *tele.Bot
	handler  *handler.ShopHandler
	name     string
	settings Settings
	logger   *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

func (i *instance) Name() string {
	return i.name
}

// Run polls for updates until Stop is called
func (i *instance) Run() {
	select {
	case <-i.stop:
		return
	default:
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		i.bot.Start()
	}()

	ticker := time.NewTicker(i.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-i.stop:
			i.bot.Stop()
			<-done
			i.logger.Info("Shop bot stopped", zap.String("shop", i.name))
			return
		case <-ticker.C:
			if n := i.handler.Sweep(i.settings.SessionIdleTTL); n > 0 {
				i.logger.Info("Dropped idle sessions", zap.Int("sessions", n))
			}
		}
	}
}

// Stop makes Run return. It is safe to call more than once, and before Run.
func (i *instance) Stop() {
	i.stopOnce.Do(func() { close(i.stop) })
}
