package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matst80/sshtarpit/internal/decoy"
	"github.com/matst80/sshtarpit/internal/obs"
	"github.com/matst80/sshtarpit/internal/tarpit"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := loadConfig(args, os.Getenv)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "sshtarpit:", err)
		return 2
	}
	if err := obs.SetFormat(cfg.LogFormat); err != nil {
		fmt.Fprintln(os.Stderr, "sshtarpit:", err)
		return 2
	}
	obs.EnableDebug(cfg.Debug)
	obs.Info("server.start", obs.Fields{"addr": cfg.ListenAddr(), "interval": cfg.Interval.String(), "metrics": cfg.MetricsAddr})

	// Armed once; the first interrupt ends the process without draining peers.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := newStateStore(ctx, cfg)
	if err != nil {
		return startupFailed(ctx, "state.init", err)
	}

	ln, err := tarpit.Listen(cfg.ListenAddr())
	if err != nil {
		obs.Error("listen.tarpit", obs.Fields{"err": err.Error(), "addr": cfg.ListenAddr()})
		return 1
	}

	buf := decoy.New()
	go buf.Run(ctx, cfg.Interval)

	if cfg.MetricsAddr != "" {
		go startMetricsServer(cfg.MetricsAddr, state)
	}

	srv := &tarpit.Server{Buffer: buf, Interval: cfg.Interval, Tracker: state, QuietPings: cfg.QuietPings}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()
	state.setReady(true)

	select {
	case <-ctx.Done():
	case err := <-served:
		if err != nil && ctx.Err() == nil {
			obs.Error("server.serve", obs.Fields{"err": err.Error()})
			return 1
		}
	}
	obs.Info("server.shutdown.signal", obs.Fields{})
	return 0
}

// startupFailed maps a startup error to an exit code. An interrupt that lands
// mid-startup cancels ctx and surfaces here as an error, but it is still a
// clean shutdown.
func startupFailed(ctx context.Context, event string, err error) int {
	if ctx.Err() != nil {
		obs.Info("server.shutdown.signal", obs.Fields{"during": event})
		return 0
	}
	obs.Error(event, obs.Fields{"err": err.Error()})
	return 1
}
