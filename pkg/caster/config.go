package caster

import (
	"time"

	"github.com/rs/zerolog"
)

// defaultDialTimeout bounds the TCP connect in Handshake. The distilled spec
// and the Rust original both dial without a deadline; an idiomatic Go client
// never does, since an unreachable or firewalled server would otherwise hang
// the engine indefinitely instead of returning to Announce.
const defaultDialTimeout = 5 * time.Second

// defaultReadTimeout bounds every blocking read of the session (the initial
// ServerGreet and each iteration of PingPong). A dead peer that neither sends
// nor closes leaves the engine stuck in a state other than Announce forever
// without this; the server's ping interval is expected to be well under this.
const defaultReadTimeout = 60 * time.Second

// config holds the engine's tunable knobs, configured via Option values
// passed to New. Unlike the teacher's atlas.Config (env-driven, for an HTTP
// server with dozens of options), the engine has few enough knobs that a
// small functional-options surface is a better fit than a struct-tag parsed
// config — env-driven configuration of these same options lives one layer
// up, in cmd/recsync-client.
type config struct {
	logger      zerolog.Logger
	dialTimeout time.Duration
	readTimeout time.Duration
}

func defaultConfig() config {
	return config{
		logger:      zerolog.Nop(),
		dialTimeout: defaultDialTimeout,
		readTimeout: defaultReadTimeout,
	}
}

// Option configures an Engine constructed by New.
type Option func(*config)

// WithLogger sets the logger the engine reports session lifecycle events to.
// If not provided, the engine logs nothing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithDialTimeout overrides how long Handshake waits for the TCP connect to
// the announced server before giving up and returning to Announce.
func WithDialTimeout(d time.Duration) Option {
	return func(c *config) { c.dialTimeout = d }
}

// WithReadTimeout overrides how long the engine waits for the initial
// ServerGreet and for each subsequent PingPong message before dropping the
// session and returning to Announce.
func WithReadTimeout(d time.Duration) Option {
	return func(c *config) { c.readTimeout = d }
}
