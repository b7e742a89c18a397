package config

import (
	"github.com/ByBren-LLC/bigroom/internal/allocate"
	"github.com/ByBren-LLC/bigroom/internal/assess"
	"github.com/ByBren-LLC/bigroom/internal/decompose"
	"github.com/ByBren-LLC/bigroom/internal/depgraph"
	"github.com/ByBren-LLC/bigroom/internal/wsjf"
)

// DefaultConfig returns a Config with the stock settings: five-point
// decomposition limit, 0.2 capacity buffer, 0.85 utilization cap, and
// a 0.85 readiness gate.
func DefaultConfig() *Config {
	return &Config{
		Analysis:      depgraph.DefaultAnalyzerConfig(),
		Decomposition: decompose.DefaultConfig(),
		Scoring: ScoringConfig{
			Thresholds: wsjf.DefaultThresholds(),
		},
		Allocation: allocate.DefaultConfig(),
		Readiness:  assess.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
