package main

import (
	"time"

	"github.com/rs/zerolog"
)

// Config holds the recsync-client binary's environment-driven configuration.
// The env struct tag contains the environment variable name and the default
// value if missing, the same convention pkg/atlas/config.go uses for Atlas.
type Config struct {
	// The minimum log level (e.g., trace, debug, info, warn, error, fatal).
	LogLevel zerolog.Level `env:"RECSYNC_LOG_LEVEL=info"`

	// Whether to log to stdout.
	LogStdout bool `env:"RECSYNC_LOG_STDOUT=true"`

	// Whether to use pretty (human-readable) logs on stdout.
	LogStdoutPretty bool `env:"RECSYNC_LOG_STDOUT_PRETTY=true"`

	// The address to expose a debug /metrics endpoint on. If empty, no debug
	// server is started.
	MetricsAddr string `env:"RECSYNC_METRICS_ADDR"`

	// The path to a JSON file describing the record inventory to advertise.
	RecordsFile string `env:"RECSYNC_RECORDS_FILE"`

	// How long to wait for the TCP connect in Handshake before giving up.
	DialTimeout time.Duration `env:"RECSYNC_DIAL_TIMEOUT=5s"`

	// How long to wait for the initial ServerGreet and each PingPong message
	// before dropping the session.
	ReadTimeout time.Duration `env:"RECSYNC_READ_TIMEOUT=60s"`
}
