// Package tarpit accepts TCP connections and feeds each peer the shared decoy
// line on a fixed cadence without ever sending an SSH identification string.
package tarpit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/matst80/sshtarpit/internal/decoy"
	"github.com/matst80/sshtarpit/internal/obs"
)

// ConnInfo describes one tarpitted peer.
type ConnInfo struct {
	ID     string    `json:"id"`
	Remote string    `json:"remote"`
	Ident  string    `json:"ident"`
	Since  time.Time `json:"since"`
}

// Tracker is told when peers enter and leave the tarpit.
type Tracker interface {
	Opened(info ConnInfo)
	Closed(info ConnInfo, held time.Duration)
}

type Server struct {
	Buffer     *decoy.Buffer
	Interval   time.Duration // defaults to decoy.KeepaliveInterval
	Tracker    Tracker       // optional
	QuietPings bool          // log heartbeats at debug instead of info
}

// Listen binds the tarpit socket.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// Serve accepts connections until ctx is cancelled and hands each one to its
// own goroutine. Handlers are not waited for. Failed accepts are logged and
// skipped; Serve returns nil once ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	obs.Info("server.listen", obs.Fields{"addr": ln.Addr().String()})
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			obs.Error("accept.error", obs.Fields{"err": err.Error()})
			obs.ErrorsTotal.WithLabelValues("accept").Inc()
			continue
		}
		go s.handle(c)
	}
}

func (s *Server) interval() time.Duration {
	if s.Interval <= 0 {
		return decoy.KeepaliveInterval
	}
	return s.Interval
}
