// Package logging provides the structured logger shared by every initium
// subcommand: four severities, a runtime JSON/text toggle, and automatic
// redaction of sensitive key-value pairs.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// sensitiveKeys mirrors the case-insensitive redaction set the rest of the
// CLI relies on for log hygiene.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"authorization": true,
	"auth":          true,
	"api_key":       true,
	"apikey":        true,
}

// Redact returns value unchanged unless key matches the sensitive set
// (case-insensitively), in which case a non-empty value becomes the
// literal "REDACTED" and an empty value is left empty.
func Redact(key, value string) string {
	if !sensitiveKeys[strings.ToLower(key)] {
		return value
	}
	if value == "" {
		return ""
	}
	return "REDACTED"
}

// Options configures a Logger.
type Options struct {
	JSON bool
	// LogFile, when non-empty, additionally writes to a rotating file via
	// lumberjack alongside stderr.
	LogFile string
	// RunID is attached to every emitted line under the "run_id" key,
	// letting operators grep a single CLI invocation out of shared logs.
	RunID string
}

// Logger is the installation-wide structured logger. It is safe for
// concurrent use; the JSON/text toggle and the underlying zap core are
// guarded by the same mutex so a toggle mid-emission cannot tear a line.
type Logger struct {
	mu    sync.Mutex
	json  bool
	ws    zapcore.WriteSyncer
	base  *zap.Logger
	runID string
}

// redactingCore wraps a zapcore.Core and scrubs sensitive string fields
// before they reach the encoder, regardless of text or JSON mode.
type redactingCore struct {
	zapcore.Core
}

func (c redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return redactingCore{c.Core.With(redactFields(fields))}
}

func (c redactingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, redactFields(fields))
}

func (c redactingCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if f.Type == zapcore.StringType {
			f.String = Redact(f.Key, f.String)
		}
		out[i] = f
	}
	return out
}

// New builds a Logger writing to stderr (and optionally a rotating log
// file) at debug level or above; the level is filtered per-call by the
// caller choosing Debug/Info/Warn/Error.
func New(opts Options) *Logger {
	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if opts.LogFile != "" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     28,
		}))
	}
	ws := zapcore.NewMultiWriteSyncer(writers...)

	l := &Logger{json: opts.JSON, ws: ws, runID: opts.RunID}
	l.base = zap.New(redactingCore{l.newCore()})
	return l
}

func (l *Logger) newCore() zapcore.Core {
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
		EncodeLevel: func(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(lvl.String()))
		},
	}
	var enc zapcore.Encoder
	if l.json {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = func(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + strings.ToUpper(lvl.String()) + "]")
		}
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewCore(enc, l.ws, zapcore.DebugLevel)
}

// SetJSON toggles JSON output at runtime. Guarded by the same lock used
// for emission so a toggle cannot interleave with an in-flight line.
func (l *Logger) SetJSON(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.json == enabled {
		return
	}
	l.json = enabled
	l.base = zap.New(redactingCore{l.newCore()})
}

func (l *Logger) log(level zapcore.Level, msg string, kvs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	base := l.base
	runID := l.runID

	fields := make([]zap.Field, 0, len(kvs)/2+1)
	if runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	for i := 0; i+1 < len(kvs); i += 2 {
		fields = append(fields, zap.String(kvs[i], kvs[i+1]))
	}

	switch level {
	case zapcore.DebugLevel:
		base.Debug(msg, fields...)
	case zapcore.InfoLevel:
		base.Info(msg, fields...)
	case zapcore.WarnLevel:
		base.Warn(msg, fields...)
	default:
		base.Error(msg, fields...)
	}
}

// Debug logs at debug level. kvs is a flat, even-length key/value list.
func (l *Logger) Debug(msg string, kvs ...string) { l.log(zapcore.DebugLevel, msg, kvs) }

// Info logs at info level.
func (l *Logger) Info(msg string, kvs ...string) { l.log(zapcore.InfoLevel, msg, kvs) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, kvs ...string) { l.log(zapcore.WarnLevel, msg, kvs) }

// Error logs at error level.
func (l *Logger) Error(msg string, kvs ...string) { l.log(zapcore.ErrorLevel, msg, kvs) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.base.Sync()
}

// NewWriter builds a Logger around an arbitrary writer, bypassing stderr
// and lumberjack; used by tests that capture output in a buffer.
func NewWriter(w io.Writer, json bool) *Logger {
	l := &Logger{json: json, ws: zapcore.AddSync(w)}
	l.base = zap.New(redactingCore{l.newCore()})
	return l
}

// Discard returns a Logger that writes to io.Discard, useful for tests
// that only assert on function return values.
func Discard() *Logger {
	return NewWriter(io.Discard, true)
}
