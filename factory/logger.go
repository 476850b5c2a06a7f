package factory

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/formgen"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from the logging settings. Format is "json"
// (production encoder) or "console" (development encoder).
func NewLogger(cfg formgen.LoggingConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = zap.NewAtomicLevelAt(parsed)
	}

	var zcfg zap.Config
	switch strings.ToLower(cfg.Format) {
	case "console":
		zcfg = zap.NewDevelopmentConfig()
	case "", "json":
		zcfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zcfg.Level = level
	return zcfg.Build()
}
