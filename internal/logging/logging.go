// Package logging builds the zap logger shared by a run.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger level and encoding.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	// OutputPaths defaults to stderr so stdout stays free for the report.
	OutputPaths []string
}

// New builds a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil && opts.Level != "" {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if opts.Level == "" {
		level = zapcore.InfoLevel
	}

	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		cfg = zap.NewProductionConfig()
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("log format %q: want console or json", opts.Format)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}
	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// FailureLogger reports failed stream requests at debug level. It
// satisfies runner.FailureLogger.
type FailureLogger struct {
	Logger *zap.Logger
	Stream string
}

func (f FailureLogger) LogFailure(err error) {
	OrNop(f.Logger).Debug("request failed", zap.String("stream", f.Stream), zap.Error(err))
}
