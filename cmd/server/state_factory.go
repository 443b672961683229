package main

import (
	"context"

	"github.com/matst80/sshtarpit/internal/obs"
)

// newStateStore creates either an in-memory or Redis-backed state store based on configuration
func newStateStore(ctx context.Context, cfg Config) (StateStore, error) {
	if cfg.RedisAddr == "" {
		obs.Info("state.backend", obs.Fields{"type": "in-memory"})
		return newServerState(), nil
	}
	obs.Info("state.backend", obs.Fields{"type": "redis", "addr": cfg.RedisAddr})
	r, err := newRedisStateStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ListenAddr())
	if err != nil {
		return nil, err
	}
	go r.startMaintenance(ctx)
	return r, nil
}
