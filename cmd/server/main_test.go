//go:build unix

package main

import (
	"context"
	"io"
	"net"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/matst80/sshtarpit/internal/decoy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestRunExitsZeroOnInterrupt(t *testing.T) {
	port := strconv.Itoa(freePort(t))
	code := make(chan int, 1)
	go func() { code <- run([]string{"--port", port, "--interval", "100ms"}) }()

	addr := net.JoinHostPort("127.0.0.1", port)
	var c net.Conn
	require.Eventually(t, func() bool {
		var err error
		c, err = net.Dial("tcp", addr)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer c.Close()

	_, err := io.WriteString(c, "SSH-2.0-test\r\n")
	require.NoError(t, err)
	var line decoy.Line
	require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = io.ReadFull(c, line[:])
	require.NoError(t, err)
	require.NoError(t, line.Valid())

	// an open peer must not hold up shutdown
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))
	select {
	case got := <-code:
		assert.Equal(t, 0, got)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after SIGINT")
	}
}

func TestRunFailsOnBusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	assert.Equal(t, 1, run([]string{"--port", port}))
}

func TestRunRejectsBadConfig(t *testing.T) {
	assert.Equal(t, 2, run([]string{"--log-format", "xml"}))
	assert.Equal(t, 0, run([]string{"--help"}))
}

func TestInterruptDuringStartupExitsZero(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := defaultConfig()
	cfg.RedisAddr = mr.Addr()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newStateStore(ctx, cfg)
	require.Error(t, err, "a cancelled context must abort the redis ping")
	assert.Equal(t, 0, startupFailed(ctx, "state.init", err))

	assert.Equal(t, 1, startupFailed(context.Background(), "state.init", err))
}
