package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

// Loader reads configuration from files.
type Loader interface {
	// Load reads a config file; every section must be present.
	Load(path string) (*Config, error)

	// LoadWithDefaults reads a config file on top of the defaults, so
	// partial files only override what they mention. A missing file
	// yields the defaults unchanged.
	LoadWithDefaults(path string) (*Config, error)
}

type viperLoader struct {
	validator Validator
}

// NewLoader creates a Loader backed by viper. A nil validator skips
// validation.
func NewLoader(validator Validator) Loader {
	return &viperLoader{validator: validator}
}

func (l *viperLoader) Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapFatalError(types.CONFIG_LOAD_FAILED,
			fmt.Sprintf("cannot read config file %s", path), err)
	}
	return l.finish(v)
}

func (l *viperLoader) LoadWithDefaults(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := l.seedDefaults(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return l.finish(v)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return l.finish(v)
		}
		return nil, types.WrapFatalError(types.CONFIG_LOAD_FAILED,
			fmt.Sprintf("cannot read config file %s", path), err)
	}
	return l.finish(v)
}

// seedDefaults primes viper with every default value so a partial
// file only overrides the keys it names.
func (l *viperLoader) seedDefaults(v *viper.Viper) error {
	defaults := DefaultConfig()

	v.SetDefault("analysis.technical_keywords", defaults.Analysis.TechnicalKeywords)
	v.SetDefault("analysis.business_keywords", defaults.Analysis.BusinessKeywords)
	v.SetDefault("analysis.confidence_threshold", defaults.Analysis.ConfidenceThreshold)
	v.SetDefault("analysis.inherit_parent_dependencies", defaults.Analysis.InheritParentDependencies)
	v.SetDefault("analysis.max_traversal_depth", defaults.Analysis.MaxTraversalDepth)

	v.SetDefault("decomposition.max_points", defaults.Decomposition.MaxPoints)
	v.SetDefault("decomposition.min_sub_items", defaults.Decomposition.MinSubItems)
	v.SetDefault("decomposition.max_sub_items", defaults.Decomposition.MaxSubItems)
	v.SetDefault("decomposition.points_strategy", string(defaults.Decomposition.PointsStrategy))
	v.SetDefault("decomposition.criteria_strategy", string(defaults.Decomposition.CriteriaStrategy))

	v.SetDefault("scoring.thresholds.urgent", defaults.Scoring.Thresholds.Urgent)
	v.SetDefault("scoring.thresholds.high", defaults.Scoring.Thresholds.High)
	v.SetDefault("scoring.thresholds.medium", defaults.Scoring.Thresholds.Medium)

	v.SetDefault("allocation.buffer_fraction", defaults.Allocation.BufferFraction)
	v.SetDefault("allocation.max_utilization", defaults.Allocation.MaxUtilization)
	v.SetDefault("allocation.velocity_confidence_floor", defaults.Allocation.VelocityConfidenceFloor)
	v.SetDefault("allocation.completion_slack_ratio", defaults.Allocation.CompletionSlackRatio)
	v.SetDefault("allocation.same_iteration_dependents", defaults.Allocation.SameIterationDependents)

	v.SetDefault("readiness.min_ready_score", defaults.Readiness.MinReadyScore)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	return nil
}

// finish unmarshals, interpolates environment references, and
// validates.
func (l *viperLoader) finish(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapFatalError(types.CONFIG_LOAD_FAILED, "cannot parse configuration", err)
	}

	cfg.Logging.Level = interpolateEnv(cfg.Logging.Level)
	cfg.Logging.Format = interpolateEnv(cfg.Logging.Format)

	// Pattern triggers arrive as structs with string fields; analyzer
	// keyword lists may reference environment values too.
	for i, kw := range cfg.Analysis.TechnicalKeywords {
		cfg.Analysis.TechnicalKeywords[i] = interpolateEnv(kw)
	}
	for i, kw := range cfg.Analysis.BusinessKeywords {
		cfg.Analysis.BusinessKeywords[i] = interpolateEnv(kw)
	}

	if l.validator != nil {
		if err := l.validator.Validate(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateEnv replaces ${VAR} references with environment values,
// leaving unresolved references untouched.
func interpolateEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value := os.Getenv(name); value != "" {
			return value
		}
		return match
	})
}
