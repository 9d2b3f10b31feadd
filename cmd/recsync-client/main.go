// Command recsync-client advertises a record inventory to a record-sync
// server on the local network.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-envparse"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/r2northstar/recsync/internal/envcfg"
	"github.com/r2northstar/recsync/pkg/caster"
)

var opt struct {
	Help bool
}

func init() {
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
}

func main() {
	pflag.Parse()

	if pflag.NArg() > 1 || opt.Help {
		fmt.Printf("usage: %s [options] [env_file]\n\noptions:\n%s\nnote: if env_file is provided, config from the environment is ignored\n", os.Args[0], pflag.CommandLine.FlagUsages())
		if opt.Help {
			os.Exit(2)
		}
		os.Exit(0)
	}

	var e []string
	if pflag.NArg() == 0 {
		e = os.Environ()
	} else {
		x, err := readEnv(pflag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: read env file: %v\n", err)
			os.Exit(1)
		}
		e = x
	}

	var c Config
	if err := envcfg.Unmarshal(&c, e, "RECSYNC_"); err != nil {
		fmt.Fprintf(os.Stderr, "error: parse config: %v\n", err)
		os.Exit(1)
	}

	logger := configureLogging(&c)

	if c.RecordsFile == "" {
		fmt.Fprintln(os.Stderr, "error: RECSYNC_RECORDS_FILE must be set")
		os.Exit(1)
	}
	recs, err := loadRecords(c.RecordsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load records: %v\n", err)
		os.Exit(1)
	}

	eng, err := caster.New(recs,
		caster.WithLogger(logger),
		caster.WithDialTimeout(c.DialTimeout),
		caster.WithReadTimeout(c.ReadTimeout),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: initialize engine: %v\n", err)
		os.Exit(1)
	}

	if c.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			var b bytes.Buffer
			metrics.WriteProcessMetrics(&b)
			eng.WritePrometheus(&b)

			w.Header().Set("Content-Type", "text/plain; version=0.0.4")
			w.WriteHeader(http.StatusOK)
			b.WriteTo(w)
		})
		go func() {
			logger.Info().Str("addr", c.MetricsAddr).Msg("starting metrics server")
			if err := http.ListenAndServe(c.MetricsAddr, mux); err != nil {
				logger.Warn().Err(err).Msg("metrics server failed")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: run engine: %v\n", err)
		os.Exit(1)
	}
}

func configureLogging(c *Config) zerolog.Logger {
	if !c.LogStdout {
		return zerolog.Nop()
	}

	var w io.Writer = os.Stdout
	if c.LogStdoutPretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	return zerolog.New(w).
		Level(c.LogLevel).
		With().
		Timestamp().
		Logger()
}

func readEnv(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return nil, err
	}

	var r []string
	for k, v := range m {
		r = append(r, k+"="+v)
	}
	return r, nil
}
