// Package observability provides logging utilities.
package observability

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/walksim/internal/config"
)

// NewLogger creates a structured logger writing to stderr from the given
// logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, encCfg, err := settings(cfg)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = cfg.Format
	zapCfg.EncoderConfig = encCfg
	// Walk turns are logged individually at debug; sampling would drop them.
	zapCfg.Sampling = nil

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger.Named("walksim"), nil
}

// NewLoggerTo creates a logger like NewLogger that writes to w instead of stderr.
//
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLoggerTo(cfg config.LoggingConfig, w io.Writer) (*zap.Logger, error) {
	level, encCfg, err := settings(cfg)
	if err != nil {
		return nil, err
	}

	var enc zapcore.Encoder
	if cfg.Format == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zap.New(core).Named("walksim"), nil
}

func settings(cfg config.LoggingConfig) (zapcore.Level, zapcore.EncoderConfig, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return 0, zapcore.EncoderConfig{}, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var encCfg zapcore.EncoderConfig
	switch cfg.Format {
	case "json":
		encCfg = zap.NewProductionEncoderConfig()
	case "console":
		encCfg = zap.NewDevelopmentEncoderConfig()
	default:
		return 0, zapcore.EncoderConfig{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return level, encCfg, nil
}
