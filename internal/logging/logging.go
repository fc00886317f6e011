// Package logging builds the zap logger used by the CLI.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvMode selects the encoder: "dev" or "development" gives the console
// encoder, anything else JSON.
const EnvMode = "BUMA_LOG"

// New returns a logger writing to stderr. verbose lowers the level to debug.
func New(verbose bool) (*zap.Logger, error) {
	return NewWithMode(os.Getenv(EnvMode), verbose)
}

// NewWithMode is New with an explicit mode instead of the environment.
func NewWithMode(mode string, verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "dev", "development":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	default:
		cfg = zap.NewProductionConfig()
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
