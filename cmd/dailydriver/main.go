package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"daily-driver/internal/app"
	"daily-driver/internal/bot"
	"daily-driver/internal/config"
	"daily-driver/internal/logging"
	"daily-driver/internal/service"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.AppName, cfg.Env, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("daily driver stopped")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// run owns every resource it opens; all of them are released before it returns.
func run(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := app.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("open core: %w", err)
	}
	defer core.Close()

	unbind := core.Profiles.Bind(ctx, core.Sessions)
	defer unbind()
	if cfg.SessionUserID != "" {
		core.Sessions.SignIn(cfg.SessionUserID)
	}

	telegramBot, err := bot.New(cfg, bot.Deps{
		Cache:    core.Cache,
		Sessions: core.Sessions,
		Tokens:   core.Tokens,
		Profiles: core.Profiles,
		Mutator:  core.Mutator,
		Recent:   core.Recent,
	}, logger.WithField("component", "bot"))
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	scheduler := service.NewScheduler(time.Local, logger, cfg.OperationTimeout)
	if cfg.RefreshInterval > 0 {
		if _, err := scheduler.ScheduleInterval("refresh", cfg.RefreshInterval, core.Profiles.Refresh); err != nil {
			return fmt.Errorf("schedule refresh: %w", err)
		}
	}
	if cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily("digest", cfg.DigestTime, telegramBot.SendRecentDigest); err != nil {
			return fmt.Errorf("schedule digest: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("daily driver bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}
	return nil
}
