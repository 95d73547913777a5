package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/avdushin/minuet-bot/internal/app"
	"github.com/avdushin/minuet-bot/internal/config"
	"github.com/avdushin/minuet-bot/internal/notify"
	"github.com/avdushin/minuet-bot/internal/schoolapi"
	"github.com/avdushin/minuet-bot/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting slot watcher",
		zap.String("environment", cfg.Environment),
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.Int("targets", len(cfg.Targets)),
		zap.String("date_from", cfg.DateFrom.Format("02.01.2006")),
		zap.String("date_to", cfg.DateTo.Format("02.01.2006")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := schoolapi.New(ctx, cfg.APIBaseURL, cfg.Email, cfg.Password, logger)
	if err != nil {
		if errors.Is(err, schoolapi.ErrAuthorizationFailed) {
			logger.Fatal("Authorization failed on startup", zap.Error(err))
		}
		logger.Fatal("Failed to initialize API client", zap.Error(err))
	}

	notifier, err := notify.New(cfg.TelegramToken, cfg.TelegramChatID, cfg.TelegramThreadID, logger)
	if err != nil {
		logger.Fatal("Failed to initialize notifier", zap.Error(err))
	}

	if cfg.MetricsAddr != "" {
		app.StartMetricsServer(ctx, cfg.MetricsAddr, logger)
	}

	watcher.New(api, notifier, cfg, logger).Run(ctx)
}
