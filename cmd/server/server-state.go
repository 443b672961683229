package main

import (
	"context"
	"sync"
	"time"

	"github.com/matst80/sshtarpit/internal/tarpit"
)

type serverState struct {
	mu     sync.Mutex
	conns  map[string]tarpit.ConnInfo // id -> active peer
	ready  bool
	total  int64         // peers ever accepted
	wasted time.Duration // summed hold time of closed peers
}

func newServerState() *serverState {
	return &serverState{conns: make(map[string]tarpit.ConnInfo)}
}

var _ StateStore = (*serverState)(nil)

func (s *serverState) setReady(ready bool) { s.mu.Lock(); s.ready = ready; s.mu.Unlock() }
func (s *serverState) isReady() bool       { s.mu.Lock(); defer s.mu.Unlock(); return s.ready }

func (s *serverState) Opened(info tarpit.ConnInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[info.ID] = info
	s.total++
}

func (s *serverState) Closed(info tarpit.ConnInfo, held time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, info.ID)
	s.wasted += held
}

func (s *serverState) counts() (active int, total int64, wasted time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasted = s.wasted
	now := time.Now()
	for _, c := range s.conns {
		wasted += now.Sub(c.Since)
	}
	return len(s.conns), s.total, wasted
}

func (s *serverState) stats(context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return buildStats(s.conns, s.total, s.wasted, time.Now()), nil
}
