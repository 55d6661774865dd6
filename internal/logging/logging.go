// File: internal/logging/logging.go
// Brief: Structured logger construction for the CLI.

package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a zap logger configured with the given level string. Debug
// builds a development logger with full caller detail; everything else uses
// the compact production encoder on stderr.
func New(level string) (*zap.Logger, error) {
	lower := strings.ToLower(level)
	var zapLevel zapcore.Level
	development := false
	switch lower {
	case "debug":
		development = true
		zapLevel = zapcore.DebugLevel
	case "info", "":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", level)
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
