package main

import (
	"context"
	"fmt"

	"github.com/flowforge/orchestrator/internal/config"
	"github.com/flowforge/orchestrator/internal/logger"
	"github.com/flowforge/orchestrator/internal/persistence"
	"github.com/flowforge/orchestrator/internal/persistence/memory"
	"github.com/flowforge/orchestrator/internal/persistence/remote"
)

// buildLogger constructs the process-wide logger from cfg, following the
// teacher's cmd/logger.go functional-options construction.
func buildLogger(cfg *config.Config) logger.Logger {
	opts := []logger.Option{logger.WithFormat(cfg.LogFormat)}
	if cfg.Debug {
		opts = append(opts, logger.WithDebug())
	}
	return logger.NewLogger(opts...)
}

// buildBackend selects the in-memory or Redis persistence backend per
// spec.md §6: REDIS_URL/--redis-url set selects remote, unset selects
// in-memory.
func buildBackend(ctx context.Context, cfg *config.Config) (persistence.Backend, error) {
	if cfg.RedisURL == "" {
		return memory.New(0), nil
	}

	logger.Info(ctx, "connecting to redis backend", "url", cfg.RedisURL)
	backend, err := remote.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis backend: %w", err)
	}
	return backend, nil
}
