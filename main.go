package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/nikether/stream-status/config"
	httpServer "github.com/nikether/stream-status/http"
	"github.com/nikether/stream-status/logger"
	"github.com/nikether/stream-status/poller"
	sentryhelper "github.com/nikether/stream-status/sentry_helper"
	"github.com/nikether/stream-status/status"
	"github.com/nikether/stream-status/telegram"
)

func main() {
	cfg := config.Load()

	appLogger := logger.NewLogger(&logger.Config{Level: cfg.LogLevel})
	slog.SetDefault(appLogger)

	if err := cfg.Validate(); err != nil {
		appLogger.Error("Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sentryEnabled := cfg.SentryDSN != ""
	if sentryEnabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
			Release:     "stream-status@1.0.0",
		})
		if err != nil {
			appLogger.Error("sentry.Init failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
		defer sentry.Recover()
	}
	sentryHelper := sentryhelper.NewSentryHelper(sentryEnabled, appLogger)

	client := status.NewClient(cfg, logger.WithComponent(appLogger, "status"), sentryHelper)

	if !cfg.SkipPrecheck {
		runPrecheck(client, appLogger)
	}

	notifier := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID,
		logger.WithComponent(appLogger, "telegram"))

	statusPoller := poller.New(poller.Options{
		Source:       client,
		Interval:     cfg.PollInterval,
		FetchTimeout: cfg.RequestTimeout,
		Logger:       logger.WithComponent(appLogger, "poller"),
		Sentry:       sentryHelper,
		OnTransition: notifier.NotifyTransition,
	})
	statusPoller.Start()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		err := config.WatchFile(rootCtx, envFile, logger.WithComponent(appLogger, "config"), func(next *config.Config) {
			client.UpdateConfig(next)
			appLogger.Info("Configuration reloaded", slog.String("upstream", next.StatusURL))
		})
		if err != nil {
			appLogger.Warn("Config watch not started", slog.String("error", err.Error()))
		}
	}

	server := httpServer.NewServer(client, statusPoller, logger.WithComponent(appLogger, "http"), sentryHelper)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ListenPort),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Server started", slog.Int("port", cfg.ListenPort))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.String("error", err.Error()))
			sentryHelper.CaptureException(err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	appLogger.Info("Shutting down", slog.String("signal", sig.String()))
	rootCancel()
	statusPoller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		appLogger.Error("Shutdown failed", slog.String("error", err.Error()))
		sentryHelper.CaptureException(err)
	}
	appLogger.Info("Server stopped")
	sentryHelper.SafeFlush(2 * time.Second)
}

// runPrecheck probes the upstream once at startup. Failures are reported
// but never fatal at runtime; the deploy-time gate is cmd/preflight.
func runPrecheck(client *status.Client, appLogger *slog.Logger) {
	cfg := client.Config()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	result, err := client.Precheck(ctx)
	if err != nil {
		appLogger.Warn("Upstream precheck failed", slog.String("error", err.Error()))
		return
	}
	for _, warning := range result.Warnings {
		appLogger.Warn("Upstream precheck warning", slog.String("warning", warning))
	}
	appLogger.Info("Upstream precheck passed", slog.String("upstream", result.Upstream))
}
