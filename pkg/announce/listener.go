package announce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/r2northstar/recsync/pkg/wire"
)

// ErrListenerClosed is returned by reads on a Listener after Close is called.
var ErrListenerClosed = errors.New("announce: listener closed")

// datagramBufSize is larger than any datagram this protocol produces; no
// announcement exceeds DatagramSize useful bytes.
const datagramBufSize = 1024

// Listener receives and validates discovery datagrams on a UDP socket.
type Listener struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	closing bool

	mon map[chan<- RawDatagram]struct{}

	metrics struct {
		accepted atomic.Uint64
		rejected atomic.Uint64
	}
}

// RawDatagram describes a received datagram, valid or not, for debugging via
// Monitor.
type RawDatagram struct {
	Src   netip.AddrPort
	Data  []byte
	Valid bool
}

// NewListener binds a UDP socket on 0.0.0.0:<wire.AnnouncePort> and returns a
// Listener ready to receive announcements. SO_REUSEADDR is set on the socket
// (where the platform supports it) so the client can rebind promptly after a
// restart.
func NewListener() (*Listener, error) {
	lc := net.ListenConfig{Control: controlReuseAddr}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", wire.AnnouncePort))
	if err != nil {
		return nil, fmt.Errorf("announce: bind udp listener: %w", err)
	}

	return &Listener{
		conn: pc.(*net.UDPConn),
		mon:  make(map[chan<- RawDatagram]struct{}),
	}, nil
}

// Accept blocks until a valid announcement is received, ctx is cancelled, or
// the listener is closed. Invalid datagrams (bad magic, version, or length)
// are discarded and do not cause Accept to return.
func (l *Listener) Accept(ctx context.Context) (Announcement, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			conn := l.conn
			l.mu.Unlock()
			if conn != nil {
				conn.SetReadDeadline(time.Now())
			}
		case <-done:
		}
	}()

	for {
		l.mu.Lock()
		conn := l.conn
		closing := l.closing
		l.mu.Unlock()

		if conn == nil || closing {
			return Announcement{}, ErrListenerClosed
		}

		buf := make([]byte, datagramBufSize)
		n, addr, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				return Announcement{}, ctx.Err()
			}
			l.mu.Lock()
			closing = l.closing
			l.mu.Unlock()
			if closing {
				return Announcement{}, ErrListenerClosed
			}
			if isTimeout(err) {
				continue
			}
			return Announcement{}, fmt.Errorf("announce: read udp: %w", err)
		}

		data := buf[:n]
		ann, perr := Parse(data, addr.Addr())
		valid := perr == nil
		if valid {
			l.metrics.accepted.Add(1)
		} else {
			l.metrics.rejected.Add(1)
		}

		l.broadcast(RawDatagram{Src: addr, Data: data, Valid: valid})

		if valid {
			return ann, nil
		}
		// Malformed datagram: discarded, remain listening (spec §7 kind 2).
	}
}

func (l *Listener) broadcast(d RawDatagram) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c := range l.mon {
		select {
		case c <- d:
		default:
		}
	}
}

// Close unbinds the socket, causing any blocked Accept calls to return
// ErrListenerClosed.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	l.closing = true
	err := l.conn.Close()
	l.conn = nil
	return err
}

// LocalAddr returns the listener's bound local address.
func (l *Listener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Monitor writes every received datagram (valid or not) to c until ctx is
// cancelled, dropping datagrams if c doesn't have room. Intended for
// debugging, mirroring the teacher's connectionless-packet monitor.
func (l *Listener) Monitor(ctx context.Context, c chan<- RawDatagram) {
	l.mu.Lock()
	l.mon[c] = struct{}{}
	l.mu.Unlock()

	<-ctx.Done()

	l.mu.Lock()
	delete(l.mon, c)
	l.mu.Unlock()
}

// WritePrometheus writes accepted/rejected datagram counters in Prometheus
// text exposition format.
func (l *Listener) WritePrometheus(w io.Writer) {
	fmt.Fprintln(w, `recsync_announce_datagrams_total{result="accepted"}`, l.metrics.accepted.Load())
	fmt.Fprintln(w, `recsync_announce_datagrams_total{result="rejected"}`, l.metrics.rejected.Load())
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
