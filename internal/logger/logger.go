// Package logger builds the process-wide slog.Logger on top of zap.
package logger

import (
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// New returns a logger for mode and a flush function to call before exit.
//
//	prod, production   JSON to stderr, info and above
//	dev, development   console to stderr, debug and above
//	off, discard       nothing
func New(mode string) (*slog.Logger, func(), error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "prod", "production":
		cfg = zap.NewProductionConfig()
	case "dev", "development":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "off", "discard":
		return slog.New(slog.DiscardHandler), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown log mode %q", mode)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build zap logger: %w", err)
	}
	return FromCore(z.Core()), func() { _ = z.Sync() }, nil
}

// FromCore wraps an existing zap core.
func FromCore(core zapcore.Core) *slog.Logger {
	return slog.New(zapslog.NewHandler(core))
}
