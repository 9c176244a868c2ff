// Package logging builds the zap logger shared by the HTTP layer, services and
// background workers.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"docportal/internal/config"
)

// New returns a logger configured from cfg. Format "console" produces human
// readable output for local development; anything else yields one JSON object per line.
// Timestamps are rendered in loc.
func New(cfg config.LogConfig, loc *time.Location) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "ts"
		zc.EncoderConfig.MessageKey = "msg"
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if loc == nil {
		loc = time.UTC
	}
	zc.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(loc).Format(time.RFC3339Nano))
	}

	return zc.Build()
}
