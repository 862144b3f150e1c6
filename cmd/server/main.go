package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/linkchat/linkchat-server/internal/app"
	"github.com/linkchat/linkchat-server/internal/config"
	"github.com/linkchat/linkchat-server/internal/log"
)

func main() {
	var (
		configPath string
		overrides  config.Config
	)

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flag.StringVar(&overrides.DatabasePath, "db", "", "path to SQLite database")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flag.Parse()

	logger := log.New(overrides.LogLevel)

	cfg, path, err := config.Load(logger, configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", path).Msg("load config")
	}
	cfg.UpdateFrom(overrides)

	logger = log.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init application")
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting linkchat server")
	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
