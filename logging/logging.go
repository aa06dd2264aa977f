// Package logging builds the structured zerolog logger used by the CLI and
// adapts it to authsession.Logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/activitymap"
	"github.com/rs/zerolog"
)

// Options controls logger behaviour.
type Options struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Defaults to "info" when empty or unrecognised.
	Level string
	// Pretty enables human-friendly console output.
	Pretty bool
	// Output is the writer logs are sent to. Defaults to os.Stderr so
	// command output on stdout stays clean.
	Output io.Writer
}

// New builds a logger from opts
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a string to a zerolog.Level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Adapter exposes a zerolog.Logger through authsession.Logger
type Adapter struct {
	logger zerolog.Logger
}

var _ authsession.Logger = (*Adapter)(nil)

// NewAdapter tags every entry with component
func NewAdapter(logger zerolog.Logger, component string) *Adapter {
	if component != "" {
		logger = logger.With().Str("component", component).Logger()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) Debug(format string, args ...any) {
	a.logger.Debug().Msgf(format, args...)
}

func (a *Adapter) Info(format string, args ...any) {
	a.logger.Info().Msgf(format, args...)
}

func (a *Adapter) Warn(format string, args ...any) {
	a.logger.Warn().Msgf(format, args...)
}

func (a *Adapter) Error(format string, args ...any) {
	a.logger.Error().Msgf(format, args...)
}

// ActivityConsumer writes normalized activity records as info entries. Use
// it with activitymap.Sink.
func ActivityConsumer(logger zerolog.Logger) func(context.Context, activitymap.Normalized) error {
	return func(_ context.Context, record activitymap.Normalized) error {
		evt := logger.Info().
			Str("actor_id", record.ActorID).
			Str("verb", record.Verb).
			Str("object_type", record.ObjectType).
			Str("object_id", record.ObjectID).
			Str("channel", record.Channel).
			Time("occurred_at", record.OccurredAt)
		for key, value := range record.Metadata {
			evt = evt.Str(key, fmt.Sprint(value))
		}
		evt.Msg("activity")
		return nil
	}
}
