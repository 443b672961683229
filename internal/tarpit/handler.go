package tarpit

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/matst80/sshtarpit/internal/decoy"
	"github.com/matst80/sshtarpit/internal/obs"
)

const (
	// maxIdentLen caps what is kept of the client ident (RFC 4253 allows 255).
	maxIdentLen = 255
	// peekWait must be positive: an already expired deadline fails the read
	// before the socket is looked at, so EOF would never be seen.
	peekWait = time.Millisecond
)

func (s *Server) handle(c net.Conn) {
	defer c.Close()
	info := ConnInfo{ID: uuid.NewString(), Remote: c.RemoteAddr().String(), Since: time.Now()}

	ident, err := readIdent(bufio.NewReader(c))
	halfClosed := false
	if err != nil {
		if !errors.Is(err, io.EOF) {
			obs.Debug("conn.ident.error", obs.Fields{"id": info.ID, "remote": info.Remote, "err": err.Error()})
			obs.ErrorsTotal.WithLabelValues(errorType(err)).Inc()
			return
		}
		// the peer shut down its write side without a full line; its read
		// side may still be open, so keep feeding it
		halfClosed = true
	}
	info.Ident = strings.TrimRightFunc(ident, unicode.IsSpace)

	obs.Info("conn.open", obs.Fields{"id": info.ID, "remote": info.Remote, "ident": info.Ident})
	obs.ConnectionsTotal.Inc()
	obs.ActiveConnections.Inc()
	if s.Tracker != nil {
		s.Tracker.Opened(info)
	}

	err = s.feed(c, info, halfClosed)

	held := time.Since(info.Since)
	obs.ActiveConnections.Dec()
	obs.ConnectionDurationSeconds.Observe(held.Seconds())
	if s.Tracker != nil {
		s.Tracker.Closed(info, held)
	}
	fields := obs.Fields{"id": info.ID, "remote": info.Remote, "held": held.Round(time.Millisecond).String()}
	if err != nil {
		obs.ErrorsTotal.WithLabelValues(errorType(err)).Inc()
		fields["err"] = err.Error()
	}
	obs.Info("conn.close", fields)
}

// feed writes a snapshot of the decoy line every interval until the peer goes
// away or a write fails. A nil error means the peer closed cleanly.
func (s *Server) feed(c net.Conn, info ConnInfo, halfClosed bool) error {
	scratch := make([]byte, 1)
	for {
		if !halfClosed {
			gone, err := peerGone(c, scratch)
			if err != nil {
				return err
			}
			if gone {
				return nil
			}
		}

		line := s.Buffer.Snapshot()
		if _, err := c.Write(line[:]); err != nil {
			// without the liveness read a write is the only way to see a peer leave
			if halfClosed && isDisconnect(err) {
				return nil
			}
			return err
		}
		obs.LinesSentTotal.Inc()
		obs.BytesSentTotal.Add(decoy.LineSize)
		if s.QuietPings {
			obs.Debug("conn.ping", obs.Fields{"id": info.ID, "remote": info.Remote})
		} else {
			obs.Info("conn.ping", obs.Fields{"id": info.ID, "remote": info.Remote})
		}

		time.Sleep(s.interval())
	}
}

// readIdent consumes one line from rd, keeping at most maxIdentLen bytes of it.
func readIdent(rd *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		frag, err := rd.ReadSlice('\n')
		if room := maxIdentLen - sb.Len(); room > 0 {
			sb.Write(frag[:min(len(frag), room)])
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return sb.String(), err
	}
}

// peerGone does a practically non-blocking 1-byte read. Anything the peer sent
// is discarded.
func peerGone(c net.Conn, scratch []byte) (bool, error) {
	if err := c.SetReadDeadline(time.Now().Add(peekWait)); err != nil {
		return false, err
	}
	_, err := c.Read(scratch)
	switch {
	case err == nil, errors.Is(err, os.ErrDeadlineExceeded):
		return false, nil
	case errors.Is(err, io.EOF):
		return true, nil
	default:
		return false, err
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, io.EOF):
		return "conn_eof"
	case errors.Is(err, os.ErrDeadlineExceeded):
		return "conn_timeout"
	case isDisconnect(err):
		return "conn_reset"
	default:
		return "conn_other"
	}
}

func isDisconnect(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}
