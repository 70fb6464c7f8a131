package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardshop/internal/dashboard"
	"cardshop/internal/handler"
	"cardshop/internal/middleware"
	"cardshop/internal/service"
	"cardshop/internal/shopbot"
	"cardshop/internal/supervisor"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const sweepInterval = 10 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the registration bot and the supervisor of every registered shop bot",
		Long: "Run the registration bot, launch a shop bot for every registration on disk,\n" +
			"and, when configured, the manager bot and the admin dashboard.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	a.logger.Info("Starting cardshop", zap.String("version", version))

	regBot, err := a.newBot(a.cfg.RegistrationBotToken, "registration")
	if err != nil {
		return err
	}

	notifier := handler.NewBotNotifier(regBot)

	factory := shopbot.NewFactory(a.registrations, a.deps(), shopbot.Settings{
		SweepInterval:  sweepInterval,
		SessionIdleTTL: a.cfg.SessionIdleTTL,
	}, a.logger)
	sup := supervisor.New(factory, a.registrations, a.logger)

	registrations := service.NewRegistrationService(a.registrations, a.catalog, sup, notifier, a.cfg.AdminID,
		service.Pricing{FullShop: a.cfg.FullShopPrice, SingleCard: a.cfg.SingleCardPrice}, a.logger)

	deps := a.deps()
	deps.Registrations = registrations
	rh := handler.NewRegistrationHandler(regBot, deps, a.logger)
	regBot.Use(middleware.EnsureUser(a.catalog, a.logger))
	rh.RegisterHandlers()

	a.logger.Info("Handlers registered")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		_ = sup.Run(ctx)
	}()
	go a.forwardLaunchFailures(ctx, sup.Reports(), notifier)
	go runSweeper(ctx, rh.Handler, a.cfg.SessionIdleTTL, a.logger)

	bots := []*tele.Bot{regBot}
	if a.cfg.ManagerBotToken != "" {
		managerBot, err := a.startManager(ctx)
		if err != nil {
			a.logger.Error("Manager bot not started", zap.Error(err))
		} else {
			bots = append(bots, managerBot)
		}
	}

	var srv *http.Server
	if a.cfg.Dashboard.Token != "" {
		srv = a.startDashboard()
	}

	go func() {
		a.logger.Info("Registration bot started successfully")
		regBot.Start()
	}()

	<-ctx.Done()

	a.logger.Info("Shutdown signal received, stopping bots...")

	for _, bot := range bots {
		bot.Stop()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Dashboard shutdown", zap.Error(err))
		}
	}
	<-supDone

	a.logger.Info("Stopped gracefully")
	return nil
}

// forwardLaunchFailures tells the admin about shop bots that failed to start
func (a *app) forwardLaunchFailures(ctx context.Context, reports <-chan supervisor.Report, notifier *handler.BotNotifier) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-reports:
			if r.Err == nil {
				a.logger.Info("Shop bot launched", zap.Stringer("credential", r.Credential), zap.String("name", r.Name))
				continue
			}
			text := fmt.Sprintf("⚠️ Shop bot %s failed to start: %v", r.Credential, r.Err)
			if err := notifier.Notify(ctx, a.cfg.AdminID, text); err != nil {
				a.logger.Warn("Failed to notify admin", zap.Error(err))
			}
		}
	}
}

// runSweeper periodically drops idle conversation sessions
func runSweeper(ctx context.Context, h *handler.Handler, idle time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Session sweeper stopped")
			return
		case <-ticker.C:
			if n := h.Sweep(idle); n > 0 {
				logger.Info("Dropped idle sessions", zap.Int("sessions", n))
			}
		}
	}
}

// startManager starts the manager bot; it stops with the caller
func (a *app) startManager(ctx context.Context) (*tele.Bot, error) {
	bot, err := a.newBot(a.cfg.ManagerBotToken, "manager")
	if err != nil {
		return nil, err
	}

	mh := handler.NewManagerHandler(bot, a.deps(), a.logger)
	bot.Use(middleware.EnsureUser(a.catalog, a.logger))
	mh.RegisterHandlers()

	go runSweeper(ctx, mh.Handler, a.cfg.SessionIdleTTL, a.logger)
	go func() {
		a.logger.Info("Manager bot started successfully")
		bot.Start()
	}()
	return bot, nil
}

// startDashboard serves the admin dashboard in the background
func (a *app) startDashboard() *http.Server {
	srv := &http.Server{
		Addr:              a.cfg.Dashboard.Addr,
		Handler:           dashboard.NewRouter(a.admin, a.cfg.Dashboard.Token, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.logger.Info("Dashboard listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Dashboard stopped", zap.Error(err))
		}
	}()
	return srv
}
