package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Config holds probe runtime configuration.
type Config struct {
	Target  string
	Ident   string
	Lines   int
	Timeout time.Duration // per line; should exceed the tarpit interval
}

func loadConfig(args []string) (Config, error) {
	var cfg Config
	fs := pflag.NewFlagSet("sshtarpit-probe", pflag.ContinueOnError)
	fs.StringVarP(&cfg.Target, "target", "t", "127.0.0.1:22", "tarpit address to probe")
	fs.StringVarP(&cfg.Ident, "ident", "i", "SSH-2.0-sshtarpit-probe", "identification line to send; empty sends nothing and half-closes")
	fs.IntVarP(&cfg.Lines, "lines", "n", 3, "decoy lines to read before disconnecting")
	fs.DurationVar(&cfg.Timeout, "timeout", 15*time.Second, "maximum wait for each line")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.Lines < 1 {
		return cfg, fmt.Errorf("lines must be at least 1")
	}
	if cfg.Timeout <= 0 {
		return cfg, fmt.Errorf("timeout must be positive")
	}
	return cfg, nil
}
