package main

import (
	"context"

	"github.com/matst80/sshtarpit/internal/tarpit"
)

// StateStore tracks tarpitted peers for the dashboard and API. The Redis
// backend adds a fleet-wide view across instances.
type StateStore interface {
	tarpit.Tracker
	setReady(ready bool)
	isReady() bool
	stats(ctx context.Context) (Stats, error)
}
