package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Format is "console" or "json". Empty means console.
	Format string

	// File is an optional log file path written in addition to stderr.
	File string
}

// New builds a zap logger that writes to stderr (stdout carries CLI JSON
// output and the MCP stdio transport).
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		cfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("unknown log format %q (want console or json)", opts.Format)
	}

	if opts.File != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	return cfg.Build()
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
