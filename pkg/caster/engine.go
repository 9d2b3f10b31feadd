// Package caster drives the record-caster client's session lifecycle: UDP
// announcement reception, the Announce/Handshake/Upload/PingPong state
// machine, and reconnection after a session ends.
package caster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/r2northstar/recsync/pkg/announce"
	"github.com/r2northstar/recsync/pkg/record"
	"github.com/r2northstar/recsync/pkg/wire"
)

// Engine advertises an immutable record inventory to whichever record-sync
// server announces itself on the local network, reconnecting forever until
// its Run context is cancelled.
type Engine struct {
	records  []record.Record
	listener *announce.Listener
	cfg      config
	metrics  sessionMetrics
}

// New validates records and binds the UDP announcement listener. The
// returned Engine does not start listening for servers until Run is called.
func New(records []record.Record, opts ...Option) (*Engine, error) {
	if err := record.Validate(records); err != nil {
		return nil, fmt.Errorf("caster: invalid record inventory: %w", err)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	l, err := announce.NewListener()
	if err != nil {
		return nil, fmt.Errorf("caster: new engine: %w", err)
	}

	return &Engine{
		records:  append([]record.Record(nil), records...),
		listener: l,
		cfg:      cfg,
	}, nil
}

// Run drives the engine's state machine until ctx is cancelled, in which
// case it returns ctx.Err(), or until the announcement listener is closed or
// reading its socket fails. It never returns under normal operation.
func (e *Engine) Run(ctx context.Context) error {
	defer e.listener.Close()

	for {
		ann, err := e.listener.Accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, announce.ErrListenerClosed) {
				return err
			}
			return fmt.Errorf("caster: announce: %w", err)
		}

		e.cfg.logger.Debug().
			Str("server_addr", ann.ServerAddr.String()).
			Uint16("server_port", ann.ServerPort).
			Msg("received announcement")

		e.runSession(ctx, ann)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// runSession performs one Handshake/Upload/PingPong attempt and always
// returns to the caller (and hence to Announce) regardless of outcome; it
// never returns an error because every failure mode in this protocol is
// handled by restarting discovery, not by propagating.
func (e *Engine) runSession(ctx context.Context, ann announce.Announcement) {
	defer e.metrics.sessionsRestarted.Add(1)

	conn, err := e.handshake(ctx, ann)
	if err != nil {
		e.metrics.handshakeFailed.Add(1)
		e.cfg.logger.Warn().Err(err).Msg("handshake failed")
		return
	}
	defer conn.NetConn().Close()

	if err := e.upload(conn); err != nil {
		e.metrics.uploadFailed.Add(1)
		e.cfg.logger.Info().Err(err).Msg("upload failed")
		return
	}

	e.metrics.sessionsCompleted.Add(1)
	e.cfg.logger.Info().Msg("upload complete, entering ping/pong")

	e.pingpong(ctx, conn)
}

// handshake opens a TCP connection to the announced server, reads the first
// message, and replies to a ServerGreet with ClientGreet. Any other first
// message, a decode error, or EOF is a handshake failure.
func (e *Engine) handshake(ctx context.Context, ann announce.Announcement) (*wire.Conn, error) {
	addr := net.JoinHostPort(ann.ServerAddr.String(), fmt.Sprint(ann.ServerPort))

	dialer := net.Dialer{Timeout: e.cfg.dialTimeout}
	nc, err := dialer.DialContext(ctx, "tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	nc.SetReadDeadline(time.Now().Add(e.cfg.readTimeout))

	conn := wire.NewConn(nc)
	if err := greet(conn, ann); err != nil {
		nc.Close()
		return nil, err
	}
	return conn, nil
}

// greet performs the ServerGreet/ClientGreet exchange over an already-open
// connection. Split out from handshake so it can be exercised directly
// against an in-memory pipe in tests, without a real TCP dial.
func greet(conn *wire.Conn, ann announce.Announcement) error {
	m, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read first message: %w", err)
	}

	if _, ok := m.(wire.MsgServerGreet); !ok {
		return fmt.Errorf("expected ServerGreet, got %T", m)
	}

	if err := conn.WriteMessage(wire.MsgClientGreet{ServKey: ann.ServerKey}); err != nil {
		return fmt.Errorf("send ClientGreet: %w", err)
	}
	return nil
}

// pingpong answers Ping messages with Pong until the stream fails or ctx is
// cancelled, at which point the caller tears the session down. ctx is checked
// before each read; a read that is already blocked is not interrupted by a
// cancellation and returns on the next frame, the peer closing, or the read
// timeout.
func (e *Engine) pingpong(ctx context.Context, conn *wire.Conn) {
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		conn.NetConn().SetReadDeadline(time.Now().Add(e.cfg.readTimeout))

		m, err := conn.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.Is(err, io.EOF) || errors.As(err, &ne) {
				e.cfg.logger.Info().Err(err).Msg("session ended")
			} else {
				e.cfg.logger.Warn().Err(err).Msg("protocol violation in ping/pong, dropping session")
			}
			return
		}

		ping, ok := m.(wire.MsgPing)
		if !ok {
			e.cfg.logger.Warn().Str("got", m.ID().String()).Msg("unexpected message in ping/pong, dropping session")
			return
		}

		if err := conn.WriteMessage(wire.MsgPong{Nonce: ping.Nonce}); err != nil {
			e.cfg.logger.Info().Err(err).Msg("failed to send pong, dropping session")
			return
		}
		e.metrics.pingsAnswered.Add(1)
	}
}

// WritePrometheus writes this engine's session counters plus its
// announcement listener's datagram counters, in Prometheus text exposition
// format.
func (e *Engine) WritePrometheus(w io.Writer) {
	e.metrics.WritePrometheus(w)
	e.listener.WritePrometheus(w)
}
