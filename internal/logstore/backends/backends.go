// Package backends selects a LogStore implementation from configuration.
package backends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"skrining/internal/logstore"
	"skrining/internal/logstore/kafka"
	"skrining/internal/logstore/memory"
	"skrining/internal/logstore/postgres"
	redisstore "skrining/internal/logstore/redis"
	"skrining/internal/logstore/sqlite"
	"skrining/internal/platform/config"
	"skrining/internal/platform/redis"
)

// Driver identifies a concrete LogStore implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-process only (tests / dry runs)
	DriverSQLite   Driver = "sqlite"   // embedded single file
	DriverPostgres Driver = "postgres" // PostgreSQL server
	DriverRedis    Driver = "redis"    // shared redis
)

// Handle owns an opened store and whatever connections back it.
type Handle struct {
	logstore.Store
	closers []func() error
}

// Close releases every backing connection, newest first.
func (h *Handle) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open selects a backend by cfg.LogStore.Driver (default sqlite) and wraps it
// in a kafka publisher when brokers are configured.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handle{}
	driver := Driver(cfg.LogStore.Driver)
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverMemory:
		h.Store = memory.New()
	case DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.LogStore.SQLitePath, cfg.LogStore.Table)
		if err != nil {
			return nil, err
		}
		h.Store = s
		h.closers = append(h.closers, s.Close)
	case DriverPostgres:
		s, err := postgres.Open(ctx, cfg.LogStore.PostgresDSN, cfg.LogStore.Table)
		if err != nil {
			return nil, err
		}
		h.Store = s
		h.closers = append(h.closers, s.Close)
	case DriverRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("redis log store requires REDIS_URL")
		}
		h.Store = redisstore.New(client.Client, cfg.LogStore.RedisPrefix)
		h.closers = append(h.closers, client.Close)
	default:
		return nil, fmt.Errorf("unknown log store driver %s", driver)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		cl, err := kafka.NewClient(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		if err := kafka.EnsureTopic(ctx, cl, cfg.Kafka.Topic); err != nil {
			logger.WarnContext(ctx, "ensure kafka topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		h.Store = kafka.NewPublisher(h.Store, cl, cfg.Kafka.Topic, kafka.WithLogger(logger))
		h.closers = append(h.closers, func() error {
			cl.Close()
			return nil
		})
	}
	logger.InfoContext(ctx, "log store opened", "driver", string(driver), "kafka", len(cfg.Kafka.Brokers) > 0)
	return h, nil
}
