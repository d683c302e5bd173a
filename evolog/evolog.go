// Package evolog is a small structured-logging facade, in the manner
// of the teacher's eventloop.Logger/LogLevel pairing, but backed in
// production by github.com/rs/zerolog the way the teacher's
// logiface-zerolog submodule backs its own facade interface.
//
// The coordinator and worker entrypoints log a fatal run error at
// Error, a failed transport close at Warn, and clean shutdown at Info.
// An evaluator panic is not recovered or logged. The dispatch engine
// and worker loop do not log, so nothing in this module logs at Debug.
package evolog

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Level mirrors the teacher's eventloop.LogLevel ordering.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Field is one structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F constructs a Field; shorthand for call sites with several fields.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Logger is the facade every package in this module logs through. The
// rest of the module depends only on this interface, never on
// zerolog directly, so tests can substitute NewNoop or a recording
// implementation.
type Logger interface {
	Debug(category, msg string, fields ...Field)
	Info(category, msg string, fields ...Field)
	Warn(category, msg string, fields ...Field)
	Error(category, msg string, err error, fields ...Field)
	IsEnabled(level Level) bool
}

// zerologLogger backs Logger with github.com/rs/zerolog.
type zerologLogger struct {
	z     zerolog.Logger
	level Level
}

// New constructs a Logger writing to w at the given minimum level.
func New(w io.Writer, level Level) Logger {
	z := zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger()
	return &zerologLogger{z: z, level: level}
}

func (l *zerologLogger) IsEnabled(level Level) bool { return level >= l.level }

func (l *zerologLogger) log(level Level, category, msg string, err error, fields []Field) {
	if !l.IsEnabled(level) {
		return
	}
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.z.Debug()
	case LevelWarn:
		ev = l.z.Warn()
	case LevelError:
		ev = l.z.Error()
	default:
		ev = l.z.Info()
	}
	ev = ev.Str("category", category)
	if err != nil {
		ev = ev.Err(err)
	}
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}

func (l *zerologLogger) Debug(category, msg string, fields ...Field) {
	l.log(LevelDebug, category, msg, nil, fields)
}
func (l *zerologLogger) Info(category, msg string, fields ...Field) {
	l.log(LevelInfo, category, msg, nil, fields)
}
func (l *zerologLogger) Warn(category, msg string, fields ...Field) {
	l.log(LevelWarn, category, msg, nil, fields)
}
func (l *zerologLogger) Error(category, msg string, err error, fields ...Field) {
	l.log(LevelError, category, msg, err, fields)
}

// noopLogger discards everything; used where a run has no configured
// log-file-name (§6) and no explicit Logger was wired in.
type noopLogger struct{}

// NewNoop returns a Logger that discards every entry.
func NewNoop() Logger { return noopLogger{} }

func (noopLogger) Debug(string, string, ...Field)        {}
func (noopLogger) Info(string, string, ...Field)         {}
func (noopLogger) Warn(string, string, ...Field)         {}
func (noopLogger) Error(string, string, error, ...Field) {}
func (noopLogger) IsEnabled(Level) bool                  { return false }

// InterpolateRank inserts rank before path's extension, e.g.
// ("evolver.log", 3) -> "evolver.3.log". If path has no extension, the
// rank is appended as a suffix instead: ("evolver", 3) -> "evolver.3".
func InterpolateRank(path string, rank int) string {
	dot := strings.LastIndexByte(path, '.')
	slash := strings.LastIndexByte(path, '/')
	if dot <= slash {
		return path + "." + strconv.Itoa(rank)
	}
	return path[:dot] + "." + strconv.Itoa(rank) + path[dot:]
}

// NewRankFile opens (creating/appending) the per-rank log file derived
// from path via InterpolateRank, and returns a Logger writing to it.
// Callers are responsible for closing the returned file handle.
func NewRankFile(path string, rank int, level Level) (Logger, *os.File, error) {
	name := InterpolateRank(path, rank)
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return New(f, level), f, nil
}
