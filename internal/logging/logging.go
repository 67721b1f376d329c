// Package logging configures the process-wide zap logger. The terminal is
// owned by the UI, so log output goes to a file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nhle/socialterm/internal/model"
)

// Setup builds a JSON file logger from cfg and installs it as the global
// logger. The returned function flushes and restores the previous logger.
func Setup(cfg model.LogConfig) (func(), error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
		}
	}

	outputs := []string{"stderr"}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		outputs = []string{cfg.File}
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.OutputPaths = outputs
	zc.ErrorOutputPaths = outputs
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	restore := zap.ReplaceGlobals(logger)
	return func() {
		_ = logger.Sync()
		restore()
	}, nil
}

// Logger is a named logger that always writes through the current global
// zap logger, so package-level loggers created before Setup still pick up
// the configured output.
type Logger struct {
	name string
}

// NewNamed returns a Logger for the given component name.
func NewNamed(name string) Logger {
	return Logger{name: name}
}

func (l Logger) z() *zap.Logger {
	return zap.L().Named(l.name)
}

func (l Logger) Debug(msg string, fields ...zap.Field) { l.z().Debug(msg, fields...) }
func (l Logger) Info(msg string, fields ...zap.Field)  { l.z().Info(msg, fields...) }
func (l Logger) Warn(msg string, fields ...zap.Field)  { l.z().Warn(msg, fields...) }
func (l Logger) Error(msg string, fields ...zap.Field) { l.z().Error(msg, fields...) }

// With returns a zap logger carrying the given fields.
func (l Logger) With(fields ...zap.Field) *zap.Logger {
	return l.z().With(fields...)
}
