// Package logging provides the structured logger used across the protocol
// engine. It mirrors the call shape the teacher's services are written
// against (WithField, WithError, Infof, Warnf, NewDefault) over zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or a file path
}

// Logger wraps zerolog.Logger with the field-chaining API the rest of the
// codebase is written against.
type Logger struct {
	name string
	zl   zerolog.Logger
}

// New builds a Logger from Config.
func New(name string, cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	var out io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			out = os.Stdout
		} else {
			out = f
		}
	}

	if strings.ToLower(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Str("component", name).Logger()
	return &Logger{name: name, zl: zl}
}

// NewDefault returns an info-level, JSON-to-stdout logger for the named component.
func NewDefault(name string) *Logger {
	return New(name, Config{Level: "info", Format: "json", Output: "stdout"})
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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

// event carries field accumulation across a With*/Info/Warn chain.
type event struct {
	l      *Logger
	ctx    zerolog.Context
}

// WithField returns a chainable logger carrying an extra key/value.
func (l *Logger) WithField(key string, value any) *event {
	return &event{l: l, ctx: l.zl.With().Interface(key, value)}
}

// WithError returns a chainable logger carrying the error field.
func (l *Logger) WithError(err error) *event {
	return &event{l: l, ctx: l.zl.With().AnErr("error", err)}
}

func (e *event) WithField(key string, value any) *event {
	e.ctx = e.ctx.Interface(key, value)
	return e
}

func (e *event) WithError(err error) *event {
	e.ctx = e.ctx.AnErr("error", err)
	return e
}

func (e *event) Info(msg string)  { e.ctx.Logger().Info().Msg(msg) }
func (e *event) Warn(msg string)  { e.ctx.Logger().Warn().Msg(msg) }
func (e *event) Error(msg string) { e.ctx.Logger().Error().Msg(msg) }
func (e *event) Debug(msg string) { e.ctx.Logger().Debug().Msg(msg) }

// Info logs at info level with no extra fields.
func (l *Logger) Info(msg string) { l.zl.Info().Msg(msg) }

// Warn logs at warn level with no extra fields.
func (l *Logger) Warn(msg string) { l.zl.Warn().Msg(msg) }

// Error logs at error level with no extra fields.
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...any) { l.zl.Info().Msgf(format, args...) }

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...any) { l.zl.Warn().Msgf(format, args...) }

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }
