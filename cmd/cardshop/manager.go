package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newManagerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manager-bot",
		Short: "Run only the optional manager bot (shop creation and browsing); shop bots run under serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.ManagerBotToken == "" {
				return errors.New("MANAGER_BOT_TOKEN is required for the manager bot")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bot, err := a.startManager(ctx)
			if err != nil {
				return err
			}

			<-ctx.Done()
			a.logger.Info("Shutdown signal received, stopping bot...")
			bot.Stop()
			return nil
		},
	}
}
