// Command preflight is the deploy-time health gate: it builds the upstream
// status URL exactly like the runtime does, applies the same port fallback,
// fetches once and exits non-zero when the endpoint is unusable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/nikether/stream-status/config"
	"github.com/nikether/stream-status/logger"
	"github.com/nikether/stream-status/playback"
	sentryhelper "github.com/nikether/stream-status/sentry_helper"
	"github.com/nikether/stream-status/status"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newCommand().ParseAndRun(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "preflight: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *ffcli.Command {
	fs := flag.NewFlagSet("preflight", flag.ExitOnError)

	cfg := config.Load()
	fs.StringVar(&cfg.StatusURL, "status-url", cfg.StatusURL, "upstream Icecast or Centova status endpoint")
	fs.StringVar(&cfg.Username, "username", cfg.Username, "username query parameter to inject when absent")
	fs.StringVar(&cfg.Mount, "mount", cfg.Mount, "requested mount path")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "request timeout")
	fs.BoolVar(&cfg.SkipPrecheck, "skip", cfg.SkipPrecheck, "skip the check and exit zero")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	return &ffcli.Command{
		Name:       "preflight",
		ShortUsage: "preflight [flags]",
		ShortHelp:  "verify the configured status endpoint is reachable and decodable",
		FlagSet:    fs,
		Options: []ff.Option{
			ff.WithEnvVarNoPrefix(),
		},
		Exec: func(ctx context.Context, args []string) error {
			return run(ctx, cfg, *logLevel)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, logLevel string) error {
	// One-shot command: burst sampling would only hide output.
	appLogger := logger.NewLogger(&logger.Config{Level: logLevel, DisableSampling: true})

	if cfg.SkipPrecheck {
		appLogger.Warn("Backend check skipped by configuration")
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := status.NewClient(cfg, appLogger, sentryhelper.NewSentryHelper(false, appLogger))

	checkCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	result, err := client.Precheck(checkCtx)
	if err != nil {
		if upstream, resolveErr := client.ResolveUpstream(); resolveErr == nil && upstream.Fallback.Adjusted {
			originalPort := upstream.Fallback.OriginalPort
			return fmt.Errorf(
				"%w\nthe configured port %s was dropped before fetching because only ports %s are reachable from the deployment target; the upstream may not answer on the fallback port",
				err, originalPort, playback.AllowedPortList())
		}
		return err
	}

	for _, warning := range result.Warnings {
		appLogger.Warn("Precheck warning", slog.String("warning", warning))
	}
	appLogger.Info("Status endpoint reachable",
		slog.String("upstream", result.Upstream),
		slog.Bool("portFallbackApplied", result.Meta.PortFallbackApplied),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
