package main

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/matst80/sshtarpit/internal/decoy"
	"github.com/spf13/pflag"
)

// Config holds all runtime configuration. Every value can come from a flag or
// an SSHTARPIT_* environment variable; flags win.
type Config struct {
	Port          uint16
	Addr          string
	Interval      time.Duration
	MetricsAddr   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LogFormat     string
	Debug         bool
	QuietPings    bool
}

func defaultConfig() Config {
	return Config{
		Port:      22,
		Addr:      "127.0.0.1",
		Interval:  decoy.KeepaliveInterval,
		LogFormat: "text",
	}
}

// loadConfig layers defaults, then environment, then command line flags.
func loadConfig(args []string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()
	if err := cfg.applyEnv(getenv); err != nil {
		return cfg, err
	}

	fs := pflag.NewFlagSet("sshtarpit", pflag.ContinueOnError)
	fs.Uint16VarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env SSHTARPIT_PORT)")
	fs.StringVarP(&cfg.Addr, "addr", "a", cfg.Addr, "address to listen on (env SSHTARPIT_ADDR)")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "decoy refresh and send interval (env SSHTARPIT_INTERVAL)")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "metrics, health and dashboard listen address; empty disables (env SSHTARPIT_METRICS)")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address for the fleet view; empty keeps state in memory (env SSHTARPIT_REDIS)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "redis password (env SSHTARPIT_REDIS_PASSWORD)")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "redis database (env SSHTARPIT_REDIS_DB)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log output: text or json (env SSHTARPIT_LOG_FORMAT)")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logs (env SSHTARPIT_DEBUG)")
	fs.BoolVar(&cfg.QuietPings, "quiet-pings", cfg.QuietPings, "log per-connection heartbeats at debug level")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("SSHTARPIT_PORT"); v != "" {
		p, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("SSHTARPIT_PORT: %w", err)
		}
		c.Port = uint16(p)
	}
	if v := getenv("SSHTARPIT_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("SSHTARPIT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SSHTARPIT_INTERVAL: %w", err)
		}
		c.Interval = d
	}
	if v := getenv("SSHTARPIT_METRICS"); v != "" {
		c.MetricsAddr = v
	}
	if v := getenv("SSHTARPIT_REDIS"); v != "" {
		c.RedisAddr = v
	}
	if v := getenv("SSHTARPIT_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := getenv("SSHTARPIT_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SSHTARPIT_REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}
	if v := getenv("SSHTARPIT_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := getenv("SSHTARPIT_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SSHTARPIT_DEBUG: %w", err)
		}
		c.Debug = b
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if net.ParseIP(c.Addr) == nil {
		return fmt.Errorf("addr %q is not an IP address", c.Addr)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// ListenAddr is the host:port the tarpit binds.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Addr, strconv.Itoa(int(c.Port)))
}
