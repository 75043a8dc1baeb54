package commands

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"skrining/internal/logstore/backends"
	"skrining/internal/platform/config"
	"skrining/internal/platform/logger"
	"skrining/internal/platform/metrics"
)

// app carries what every command needs.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func loadApp() (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &app{
		cfg:      cfg,
		logger:   logger.New(cfg.Log),
		registry: reg,
		metrics:  metrics.New(reg),
	}, nil
}

func (a *app) openStore(ctx context.Context) (*backends.Handle, error) {
	return backends.Open(ctx, a.cfg, a.logger)
}
