package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/matst80/sshtarpit/internal/obs"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "sshtarpit:instance:"

// redisStateStore keeps the local bookkeeping of serverState and publishes a
// per-instance summary hash to Redis so every instance can show fleet totals.
// The hash expires shortly after an instance stops heartbeating, so nothing
// survives a restart.
type redisStateStore struct {
	*serverState
	client     *redis.Client
	instanceID string
	listenAddr string

	// maintenance configuration
	heartbeatInterval time.Duration
	redisKeyTTL       time.Duration
}

func newRedisStateStore(ctx context.Context, addr, password string, db int, listenAddr string) (*redisStateStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &redisStateStore{
		serverState:       newServerState(),
		client:            rdb,
		instanceID:        uuid.NewString(),
		listenAddr:        listenAddr,
		heartbeatInterval: 5 * time.Second,
		redisKeyTTL:       15 * time.Second,
	}, nil
}

var _ StateStore = (*redisStateStore)(nil)

func (r *redisStateStore) key() string { return redisKeyPrefix + r.instanceID }

// startMaintenance publishes the local summary right away and then on every heartbeat.
func (r *redisStateStore) startMaintenance(ctx context.Context) {
	r.heartbeat(ctx)
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.heartbeat(ctx)
		}
	}
}

func (r *redisStateStore) heartbeat(ctx context.Context) {
	if err := r.publish(ctx); err != nil {
		obs.Error("redis.heartbeat", obs.Fields{"err": err.Error(), "instance": r.instanceID})
		obs.ErrorsTotal.WithLabelValues("redis_heartbeat").Inc()
	}
}

func (r *redisStateStore) publish(ctx context.Context) error {
	active, total, wasted := r.counts()
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.key(), map[string]any{
			"active":         active,
			"total":          total,
			"wasted_seconds": wasted.Seconds(),
			"addr":           r.listenAddr,
			"updated":        time.Now().Unix(),
		})
		p.Expire(ctx, r.key(), r.redisKeyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// fleet sums the summaries of every instance that is still heartbeating.
func (r *redisStateStore) fleet(ctx context.Context) (*FleetStats, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	fs := &FleetStats{}
	if len(keys) == 0 {
		return fs, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	if _, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.HGetAll(ctx, k)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	for _, cmd := range cmds {
		m := cmd.Val()
		if len(m) == 0 { // expired between SCAN and HGETALL
			continue
		}
		fs.Instances++
		active, _ := strconv.ParseInt(m["active"], 10, 64)
		total, _ := strconv.ParseInt(m["total"], 10, 64)
		wasted, _ := strconv.ParseFloat(m["wasted_seconds"], 64)
		fs.Active += active
		fs.Total += total
		fs.WastedSeconds += wasted
	}
	return fs, nil
}

func (r *redisStateStore) stats(ctx context.Context) (Stats, error) {
	st, _ := r.serverState.stats(ctx)
	fs, err := r.fleet(ctx)
	if err != nil {
		return st, err
	}
	st.Fleet = fs
	return st, nil
}
