package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/matst80/sshtarpit/internal/decoy"
	"github.com/matst80/sshtarpit/internal/obs"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "sshtarpit-probe:", err)
		os.Exit(2)
	}
	obs.Info("probe.start", obs.Fields{"target": cfg.Target, "lines": cfg.Lines})
	if err := probe(cfg, func(i int, wait time.Duration) {
		obs.Info("probe.line", obs.Fields{"n": i + 1, "wait": wait.Round(time.Millisecond).String()})
	}); err != nil {
		obs.Error("probe.failed", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
	obs.Info("probe.ok", obs.Fields{"target": cfg.Target})
}

// probe connects like an SSH client would and checks that only well-formed
// decoy lines come back.
func probe(cfg Config, onLine func(i int, wait time.Duration)) error {
	c, err := net.DialTimeout("tcp", cfg.Target, cfg.Timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.Ident != "" {
		if _, err := io.WriteString(c, cfg.Ident+"\r\n"); err != nil {
			return fmt.Errorf("send ident: %w", err)
		}
	} else if tc, ok := c.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			return fmt.Errorf("half-close: %w", err)
		}
	}

	var line decoy.Line
	for i := 0; i < cfg.Lines; i++ {
		start := time.Now()
		if err := c.SetReadDeadline(start.Add(cfg.Timeout)); err != nil {
			return err
		}
		if _, err := io.ReadFull(c, line[:]); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		if err := line.Valid(); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		if onLine != nil {
			onLine(i, time.Since(start))
		}
	}
	return nil
}
