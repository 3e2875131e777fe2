// Package logging builds the process logger from the verbosity level.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity gates used across the simulator, matching the 0..9 scale of the
// --verbosity flag.
const (
	VerbosityNone      = 0
	VerbosityLow       = 1
	VerbosityLowMedium = 2
	VerbosityMedium    = 5
	VerbosityHigh      = 9
)

// New creates a sugared logger whose level follows the verbosity: 0 logs
// warnings and errors only, 1..4 adds info, 5 and above adds debug.
func New(verbosity int) *zap.SugaredLogger {
	level := zapcore.WarnLevel
	switch {
	case verbosity >= VerbosityMedium:
		level = zapcore.DebugLevel
	case verbosity >= VerbosityLow:
		level = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// Nop returns a logger that discards everything; used by tests and as a safe
// default for optional logger parameters.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
