package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger: JSON with ISO8601 timestamps in production,
// colored console output otherwise.
func New(env, level string) (*zap.Logger, error) {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	return config.Build()
}

// Initialize builds the logger and installs it as the zap global, so packages can
// log through zap.L(). The returned function flushes buffered entries.
func Initialize(env, level string) (func(), error) {
	log, err := New(env, level)
	if err != nil {
		return nil, err
	}
	restore := zap.ReplaceGlobals(log.With(zap.String("service", "storefront-catalog")))
	return func() {
		_ = log.Sync()
		restore()
	}, nil
}
