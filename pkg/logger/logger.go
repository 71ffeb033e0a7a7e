// Package logger provides a zap-based application logger that attaches the
// service name and the current trace id to every entry.
package logger

import (
	"context"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents a logging level.
type Level int8

const (
	LevelDebug = Level(zapcore.DebugLevel)
	LevelInfo  = Level(zapcore.InfoLevel)
	LevelWarn  = Level(zapcore.WarnLevel)
	LevelError = Level(zapcore.ErrorLevel)
)

// ParseLevel converts a level name such as "debug" or "warn".
func ParseLevel(s string) (Level, error) {
	l, err := zapcore.ParseLevel(s)
	if err != nil {
		return LevelInfo, err
	}
	return Level(l), nil
}

// TraceIDFn extracts a trace id from the context.
type TraceIDFn func(ctx context.Context) string

// Logger writes structured JSON entries.
type Logger struct {
	log       *zap.SugaredLogger
	traceIDFn TraceIDFn
}

// New constructs a Logger writing JSON to w. traceIDFn may be nil.
func New(w io.Writer, minLevel Level, serviceName string, traceIDFn TraceIDFn) *Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zapcore.Level(minLevel))
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).With(zap.String("service", serviceName))

	return &Logger{log: z.Sugar(), traceIDFn: traceIDFn}
}

// With returns a child logger that always includes keyvals.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{log: l.log.With(keyvals...), traceIDFn: l.traceIDFn}
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, keyvals ...any) {
	l.log.Debugw(msg, l.fields(ctx, keyvals)...)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, keyvals ...any) {
	l.log.Infow(msg, l.fields(ctx, keyvals)...)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, keyvals ...any) {
	l.log.Warnw(msg, l.fields(ctx, keyvals)...)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, keyvals ...any) {
	l.log.Errorw(msg, l.fields(ctx, keyvals)...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.log.Sync()
}

func (l *Logger) fields(ctx context.Context, keyvals []any) []any {
	if l.traceIDFn == nil || ctx == nil {
		return keyvals
	}
	return append(keyvals, "trace_id", l.traceIDFn(ctx))
}
