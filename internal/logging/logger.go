// Package logging wraps zap with the two profiles Citadel runs under:
// a human-readable console encoder during development and a JSON encoder
// in production, selected by CITADEL_LOG and the process environment.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin handle around a zap.Logger so call sites don't import
// zap directly.
type Logger struct {
	*zap.Logger
}

// Config controls logger construction.
type Config struct {
	Level       string // error, warn, info, debug, trace
	Development bool
	OutputPaths []string
}

// DefaultConfig returns the production profile: JSON encoding, info level.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Development: false,
		OutputPaths: []string{"stdout"},
	}
}

// FromEnv builds a Config from CITADEL_LOG, defaulting to info.
func FromEnv() Config {
	cfg := DefaultConfig()
	if lvl := os.Getenv("CITADEL_LOG"); lvl != "" {
		cfg.Level = lvl
	}
	if os.Getenv("ENV") == "development" {
		cfg.Development = true
	}
	return cfg
}

// New builds a Logger from cfg, falling back to a no-op logger if
// construction fails so that logging never blocks startup.
func New(cfg Config) *Logger {
	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:      cfg.Development,
		Encoding:         encoding(cfg.Development),
		EncoderConfig:    encoderConfig(cfg.Development),
		OutputPaths:      outputPaths(cfg.OutputPaths),
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := zcfg.Build()
	if err != nil {
		return &Logger{zap.NewNop()}
	}
	return &Logger{l}
}

// NewDefault returns a production-profile Logger.
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// NewFromEnv returns a Logger configured from CITADEL_LOG/ENV.
func NewFromEnv() *Logger {
	return New(FromEnv())
}

func outputPaths(paths []string) []string {
	if len(paths) == 0 {
		return []string{"stdout"}
	}
	return paths
}

func encoding(dev bool) string {
	if dev {
		return "console"
	}
	return "json"
}

func encoderConfig(dev bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if dev {
		cfg = zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg
}

// parseLevel maps the spec's {error, warn, info, debug, trace} scale onto
// zap's levels; trace has no zap equivalent so it maps to debug.
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return zapcore.ErrorLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "debug", "trace":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
