package decoy

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBufferIsValid(t *testing.T) {
	line := New().Snapshot()
	require.NoError(t, line.Valid())
	assert.Equal(t, byte('x'), line[0])
	assert.Equal(t, []byte("\r\n"), line[254:])
}

func TestRefreshKeepsShape(t *testing.T) {
	b := New()
	for i := 0; i < 1000; i++ {
		b.Refresh()
		line := b.Snapshot()
		require.NoError(t, line.Valid(), "refresh %d", i)
		require.False(t, bytes.HasPrefix(line[:], []byte("SSH-")), "refresh %d produced an SSH ident", i)
	}
}

func TestRefreshIsRoughlyUniform(t *testing.T) {
	b := New()
	counts := make(map[byte]int)
	const rounds = 400
	for i := 0; i < rounds; i++ {
		b.Refresh()
		line := b.Snapshot()
		for _, c := range line[1 : LineSize-2] {
			counts[c]++
		}
	}
	require.Len(t, counts, printableMax-printableMin+1, "every printable byte should show up")
	expected := float64(rounds*(LineSize-3)) / float64(printableMax-printableMin+1)
	for c, n := range counts {
		assert.GreaterOrEqual(t, c, byte(printableMin))
		assert.LessOrEqual(t, c, byte(printableMax))
		assert.InDelta(t, expected, float64(n), expected*0.25, "byte %q", c)
	}
}

func TestValidRejectsMalformed(t *testing.T) {
	good := New().Snapshot()

	noMarker := good
	noMarker[0] = 'S'
	assert.ErrorIs(t, noMarker.Valid(), ErrMalformed)

	noCRLF := good
	noCRLF[255] = ' '
	assert.ErrorIs(t, noCRLF.Valid(), ErrMalformed)

	del := good
	del[100] = 127
	assert.ErrorIs(t, del.Valid(), ErrMalformed)
}

// Every refresh in this test writes one constant across the whole body, so a
// snapshot that mixes two refreshes shows up as a non-uniform body.
func TestSnapshotNeverTorn(t *testing.T) {
	b := New()
	b.refresh(func() byte { return '#' })
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for gen := 0; ctx.Err() == nil; gen++ {
			c := byte(printableMin + gen%(printableMax-printableMin+1))
			b.refresh(func() byte { return c })
		}
	}()

	torn := make(chan Line, 4)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				line := b.Snapshot()
				body := line[1 : LineSize-2]
				if bytes.Count(body, body[:1]) != len(body) {
					select {
					case torn <- line:
					default:
					}
					return
				}
			}
		}()
	}
	wg.Wait()
	close(torn)
	for line := range torn {
		t.Fatalf("torn snapshot: %q", line[:])
	}
}

func TestRunRefreshesUntilCancelled(t *testing.T) {
	b := New()
	before := b.Snapshot()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return b.Snapshot() != before }, time.Second, 5*time.Millisecond)
	require.NoError(t, b.Snapshot().Valid())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
