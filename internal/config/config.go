// Package config loads, defaults, and validates the planning engine
// configuration. A single Config value carries one section per engine
// component plus logging for the CLI; the engine itself never reads
// files, it receives the parsed sections.
package config

import (
	"io"
	"log/slog"
	"os"

	"github.com/ByBren-LLC/bigroom/internal/allocate"
	"github.com/ByBren-LLC/bigroom/internal/assess"
	"github.com/ByBren-LLC/bigroom/internal/decompose"
	"github.com/ByBren-LLC/bigroom/internal/depgraph"
	"github.com/ByBren-LLC/bigroom/internal/wsjf"
)

// Config is the root configuration for the planning engine.
type Config struct {
	Analysis      depgraph.AnalyzerConfig `mapstructure:"analysis" yaml:"analysis"`
	Decomposition decompose.Config        `mapstructure:"decomposition" yaml:"decomposition"`
	Scoring       ScoringConfig           `mapstructure:"scoring" yaml:"scoring"`
	Allocation    allocate.Config         `mapstructure:"allocation" yaml:"allocation"`
	Readiness     assess.Config           `mapstructure:"readiness" yaml:"readiness"`
	Logging       LoggingConfig           `mapstructure:"logging" yaml:"logging"`
}

// ScoringConfig groups the WSJF settings.
type ScoringConfig struct {
	// Thresholds are the tier cutoffs, strictly descending.
	Thresholds wsjf.Thresholds `mapstructure:"thresholds" yaml:"thresholds"`
}

// LoggingConfig controls the CLI's slog handler. Library code takes a
// logger; only the binary builds one.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// Logger builds a slog.Logger per the logging section, writing to w.
func (l LoggingConfig) Logger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Level
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
