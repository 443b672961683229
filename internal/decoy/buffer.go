// Package decoy holds the single line every tarpitted peer is fed.
//
// A Line is 256 bytes: the marker 'x', 253 random printable ASCII bytes and a
// trailing CRLF. Starting with 'x' means it can never be read as an SSH
// identification string, which must begin with "SSH-", so clients keep
// collecting pre-banner lines forever.
package decoy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/matst80/sshtarpit/internal/obs"
)

const (
	LineSize = 256
	Marker   = 'x'

	// KeepaliveInterval is both the refresh cadence and the per-peer send cadence.
	KeepaliveInterval = 10 * time.Second

	printableMin = 32
	printableMax = 126
)

// ErrMalformed is wrapped by Line.Valid for every shape violation.
var ErrMalformed = errors.New("malformed decoy line")

type Line [LineSize]byte

// Valid reports whether l has the exact decoy shape.
func (l Line) Valid() error {
	if l[0] != Marker {
		return fmt.Errorf("%w: byte 0 is %q, want %q", ErrMalformed, l[0], Marker)
	}
	if l[LineSize-2] != '\r' || l[LineSize-1] != '\n' {
		return fmt.Errorf("%w: missing CRLF terminator", ErrMalformed)
	}
	for i := 1; i < LineSize-2; i++ {
		if l[i] < printableMin || l[i] > printableMax {
			return fmt.Errorf("%w: byte %d is %#x", ErrMalformed, i, l[i])
		}
	}
	return nil
}

// Buffer is the shared decoy line. The refresher is its only writer; handlers
// take copies with Snapshot.
type Buffer struct {
	mu   sync.RWMutex
	line Line
}

// New returns a buffer that already holds a valid line.
func New() *Buffer {
	b := &Buffer{}
	b.line[LineSize-2] = '\r'
	b.line[LineSize-1] = '\n'
	b.Refresh()
	return b
}

// Snapshot copies the current line out under the read lock.
func (b *Buffer) Snapshot() Line {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.line
}

// Refresh resamples the random body of the line. CRLF is never touched.
func (b *Buffer) Refresh() { b.refresh(samplePrintable) }

func (b *Buffer) refresh(sample func() byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.line[0] = Marker
	for i := 1; i < LineSize-2; i++ {
		b.line[i] = sample()
	}
}

func samplePrintable() byte {
	return byte(printableMin + rand.Intn(printableMax-printableMin+1))
}

// Run refreshes the buffer every interval until ctx is done. The write lock is
// released before waiting.
func (b *Buffer) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		b.Refresh()
		obs.BufferRefreshTotal.Inc()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
