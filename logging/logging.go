// Package logging wires the two event loggers the rest of the module
// takes by value: zerolog for the run-event stream (engine, optimize)
// and logrus for the candle-client HTTP layer, matching the
// teacher's split between the store/trader log stream and the mcp/HTTP
// client layer's own logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

// NewZerolog builds the zerolog.Logger passed into engine.New and
// optimize.Config.Logger. level is one of
// zerolog's named levels ("debug", "info", "warn", "error"); an
// unrecognized value falls back to "info".
func NewZerolog(out io.Writer, level string) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// NewConsoleZerolog wraps NewZerolog with zerolog's human-readable console
// writer, for interactive terminal use (cmd/backtest's default when
// --json-logs isn't set).
func NewConsoleZerolog(out io.Writer, level string) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	return NewZerolog(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}, level)
}

// NewLogrus builds the logrus.Entry passed into the candle-client HTTP
// layer's retry/backoff logging.
func NewLogrus(out io.Writer, level string) *logrus.Entry {
	l := logrus.New()
	if out != nil {
		l.SetOutput(out)
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.JSONFormatter{})
	return logrus.NewEntry(l)
}
