// Package log is the proxy's levelled logging facade. It keeps zap
// out of call sites so the rest of the tree only ever imports this
// package, matching the shape the original tavern call sites
// (Infof/Warnf/Errorf/Debugf, NewHelper, With, Context) are written
// against.
package log

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the minimal levelled-logging surface the rest of the
// proxy depends on.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
	With(args ...any) Logger
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (l *zapLogger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
func (l *zapLogger) Fatalf(format string, args ...any) { l.s.Fatalf(format, args...) }
func (l *zapLogger) With(args ...any) Logger           { return &zapLogger{s: l.s.With(args...)} }

// Options configures the default logger's sinks.
type Options struct {
	Level      string // debug, info, warn, error
	Path       string // empty means stderr only
	MaxSize    int    // megabytes
	MaxAge     int    // days
	MaxBackups int
	Compress   bool
}

// New builds a Logger from Options. A zero Options value yields an
// info-level, stderr-only, human-readable logger suitable for local
// runs.
func New(o Options) Logger {
	level := zapcore.InfoLevel
	if o.Level != "" {
		_ = level.UnmarshalText([]byte(o.Level))
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := make([]zapcore.Core, 0, 2)
	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level))

	if o.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   o.Path,
			MaxSize:    orDefault(o.MaxSize, 100),
			MaxAge:     orDefault(o.MaxAge, 28),
			MaxBackups: orDefault(o.MaxBackups, 7),
			Compress:   o.Compress,
		}
		jsonEncoder := zapcore.NewJSONEncoder(encoderCfg)
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(rotator), level))
	}

	core := zapcore.NewTee(cores...)
	return &zapLogger{s: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()}
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

var defaultLogger Logger = New(Options{})

// SetLogger replaces the process-wide default logger.
func SetLogger(l Logger) { defaultLogger = l }

// GetLogger returns the process-wide default logger.
func GetLogger() Logger { return defaultLogger }

func Debugf(format string, args ...any) { defaultLogger.Debugf(format, args...) }
func Infof(format string, args ...any)  { defaultLogger.Infof(format, args...) }
func Warnf(format string, args ...any)  { defaultLogger.Warnf(format, args...) }
func Errorf(format string, args ...any) { defaultLogger.Errorf(format, args...) }
func Fatalf(format string, args ...any) { defaultLogger.Fatalf(format, args...) }

// Fatal logs err at fatal level and exits the process, matching the
// process-glue fatal path (bad args, unrecoverable startup failures).
func Fatal(err error) {
	if err == nil {
		return
	}
	defaultLogger.Fatalf("%v", err)
}

// Helper wraps a Logger with a fixed set of With() fields, mirroring
// the teacher's log.NewHelper(logger) convenience constructor.
type Helper struct {
	Logger
}

func NewHelper(l Logger) *Helper {
	if l == nil {
		l = defaultLogger
	}
	return &Helper{Logger: l}
}

func With(l Logger, args ...any) Logger {
	if l == nil {
		l = defaultLogger
	}
	return l.With(args...)
}

type ctxKey struct{}

// WithContext attaches l to ctx so downstream code can recover a
// connection-scoped logger via Context.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Context returns the logger attached to ctx, or the process default
// if none was attached.
func Context(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return defaultLogger
}
