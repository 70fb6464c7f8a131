package main

import (
	"database/sql"
	"fmt"
	"time"

	"cardshop/internal/config"
	"cardshop/internal/domain"
	"cardshop/internal/handler"
	"cardshop/internal/repository/filesystem"
	"cardshop/internal/repository/postgres"
	"cardshop/internal/service"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const receiptSize = 256

// app holds what every command shares once configuration and the database are up
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sql.DB

	registrations *filesystem.RegistrationStore
	catalog       *service.CatalogService
	admin         *service.AdminService
	receipts      *service.ReceiptService
}

// newLogger builds the production logger at the given level
func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zcfg.Level = lvl
	return zcfg.Build()
}

// bootstrap loads configuration, connects to the database, migrates it and builds the services
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded successfully")

	// Connect to database with retries
	db, err := connectDatabase(cfg.DSN(), logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Database connection established")

	if err := runMigrations(db, cfg.MigrationsPath, logger); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize repositories
	userRepo := postgres.NewUserRepo(db)
	shopRepo := postgres.NewShopRepo(db)
	cardRepo := postgres.NewCardRepo(db)
	purchaseRepo := postgres.NewPurchaseRepo(db)
	media := filesystem.NewMediaStore(cfg.MediaDir())

	return &app{
		cfg:           cfg,
		logger:        logger,
		db:            db,
		registrations: filesystem.NewRegistrationStore(cfg.RegistrationsDir()),
		catalog:       service.NewCatalogService(userRepo, shopRepo, cardRepo, purchaseRepo, media, cfg.AdminID, logger),
		admin:         service.NewAdminService(shopRepo, purchaseRepo, logger),
		receipts:      service.NewReceiptService(receiptSize),
	}, nil
}

func (a *app) deps() handler.Deps {
	return handler.Deps{
		Catalog:  a.catalog,
		Admin:    a.admin,
		Receipts: a.receipts,
		Policy:   a.cfg.PurchasePolicy,
		Logger:   a.logger,
	}
}

// newBot connects a long-polling bot; a bad token fails here
func (a *app) newBot(token, name string) (*tele.Bot, error) {
	return connectBot("", token, name, a.logger)
}

// connectBot creates a bot against the Bot API at url (the public one when empty).
// The token is redacted from every logged and returned error.
func connectBot(url, token, name string, logger *zap.Logger) (*tele.Bot, error) {
	cred := domain.Credential(token)
	logger = logger.With(zap.String("bot", name))

	bot, err := tele.NewBot(tele.Settings{
		URL:         url,
		Token:       cred.Secret(),
		Poller:      &tele.LongPoller{Timeout: 10 * time.Second},
		Synchronous: true,
		OnError: func(err error, c tele.Context) {
			logger.Error("Bot error", zap.String("error", cred.Redact(err.Error())))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s bot: %s", name, cred.Redact(err.Error()))
	}
	return bot, nil
}

func (a *app) Close() {
	a.db.Close()
	_ = a.logger.Sync()
}
