package main

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/matst80/sshtarpit/internal/decoy"
	"github.com/matst80/sshtarpit/internal/tarpit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTarpit(t *testing.T) string {
	t.Helper()
	ln, err := tarpit.Listen("127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := &tarpit.Server{Buffer: decoy.New(), Interval: 100 * time.Millisecond}
	go func() { _ = srv.Serve(ctx, ln) }()
	return ln.Addr().String()
}

func TestProbeAgainstTarpit(t *testing.T) {
	tests := []struct {
		name  string
		ident string
	}{
		{name: "with ident", ident: "SSH-2.0-test"},
		{name: "half-closed", ident: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Target: startTarpit(t), Ident: tt.ident, Lines: 3, Timeout: time.Second}
			seen := 0
			require.NoError(t, probe(cfg, func(int, time.Duration) { seen++ }))
			assert.Equal(t, 3, seen)
		})
	}
}

func TestProbeRejectsRealBanner(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		var banner decoy.Line
		copy(banner[:], "SSH-2.0-OpenSSH_9.6\r\n")
		_, _ = c.Write(banner[:])
		_, _ = io.Copy(io.Discard, c)
	}()

	err = probe(Config{Target: ln.Addr().String(), Ident: "SSH-2.0-test", Lines: 1, Timeout: time.Second}, nil)
	assert.ErrorIs(t, err, decoy.ErrMalformed)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig([]string{"-t", "10.0.0.1:2222", "-n", "5"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:2222", cfg.Target)
	assert.Equal(t, 5, cfg.Lines)

	_, err = loadConfig([]string{"--lines", "0"})
	assert.Error(t, err)
}
