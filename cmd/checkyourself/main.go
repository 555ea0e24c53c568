package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/checkyourself/checkyourself/internal/config"
	"github.com/checkyourself/checkyourself/internal/metrics"
	"github.com/checkyourself/checkyourself/internal/notify"
	"github.com/checkyourself/checkyourself/internal/runner"
	"github.com/checkyourself/checkyourself/internal/source"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	path := config.Path()
	slog.Info("checkyourself starting", "config", path)

	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		slog.Warn("invalid log level, using info", "log_level", cfg.LogLevel)
	}
	for _, w := range cfg.Warnings() {
		slog.Warn("config: " + w)
	}
	slog.Info("config loaded",
		"aws_accounts", len(cfg.AWSAccounts),
		"remote_certs", len(cfg.RemoteCerts),
		"channels", len(cfg.SlackChannels),
		"warning_threshold", cfg.Thresholds().Warning,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sources := source.FromConfig(cfg)

	var pusher runner.MetricsPusher
	if p := metrics.NewPusher(cfg.Metrics, cfg.Timeout.Std()); p != nil {
		pusher = p
	}

	sum := runner.New(cfg, sources, notify.NewSlack(cfg), pusher).Run(ctx)

	slog.Info("checkyourself finished",
		"records", len(sum.Records),
		"imminent", len(sum.Imminent),
		"source_errors", len(sum.SourceErrors),
		"delivery_errors", len(sum.DeliveryErrors),
	)
}
