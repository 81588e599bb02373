package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avdeyev/scenesync-server/internal/app"
	"github.com/avdeyev/scenesync-server/internal/config"
	"github.com/avdeyev/scenesync-server/internal/log"
)

func main() {
	var (
		configPath string
		listenAddr string
		udpAddr    string
		dbPath     string
		logLevel   string
	)

	root := &cobra.Command{
		Use:          "scenesync-server",
		Short:        "Authoritative synchronization server for a shared tabletop scene",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLog := log.New("info")

			cfg, cfgFile, err := config.Load(bootLog, configPath)
			if err != nil {
				return err
			}

			// Flags win over file and environment.
			if cmd.Flags().Changed("listen-addr") {
				cfg.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("udp-addr") {
				cfg.UDPAddr = udpAddr
			}
			if cmd.Flags().Changed("db-path") {
				cfg.DatabasePath = dbPath
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", cfgFile).Msg("configuration loaded")

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "path to config file")
	root.Flags().StringVar(&listenAddr, "listen-addr", "", "reliable channel (websocket) listen address")
	root.Flags().StringVar(&udpAddr, "udp-addr", "", "unreliable channel (UDP) listen address")
	root.Flags().StringVar(&dbPath, "db-path", "", "path to the account database")
	root.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
