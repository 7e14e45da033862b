// Package logging builds the shared zap logger used by every service.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production JSON logger at the given level.
// Unknown levels fall back to info rather than failing startup.
func New(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(strings.ToLower(strings.TrimSpace(level))); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg.Build()
}

// ForService returns a logger annotated with the service name.
func ForService(log *zap.Logger, service string) *zap.Logger {
	service = strings.TrimSpace(service)
	if service == "" {
		return log
	}
	return log.With(zap.String("service", service))
}
