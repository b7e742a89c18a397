package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByBren-LLC/bigroom/internal/decompose"
	"github.com/ByBren-LLC/bigroom/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bigroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5, cfg.Decomposition.MaxPoints)
	assert.InDelta(t, 0.2, cfg.Allocation.BufferFraction, 0.001)
	assert.InDelta(t, 0.85, cfg.Allocation.MaxUtilization, 0.001)
	assert.InDelta(t, 0.85, cfg.Readiness.MinReadyScore, 0.001)
	assert.InDelta(t, 15.0, cfg.Scoring.Thresholds.Urgent, 0.001)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, NewValidator().Validate(cfg))
}

func TestLoadWithDefaultsPartialOverride(t *testing.T) {
	path := writeConfig(t, `
allocation:
  buffer_fraction: 0.1
decomposition:
  points_strategy: fibonacci
logging:
  level: debug
`)

	cfg, err := NewLoader(NewValidator()).LoadWithDefaults(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, cfg.Allocation.BufferFraction, 0.001)
	assert.Equal(t, decompose.PointsFibonacci, cfg.Decomposition.PointsStrategy)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.InDelta(t, 0.85, cfg.Allocation.MaxUtilization, 0.001)
	assert.Equal(t, 5, cfg.Decomposition.MaxPoints)
	assert.NotEmpty(t, cfg.Analysis.TechnicalKeywords)
}

func TestLoadWithDefaultsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := NewLoader(NewValidator()).LoadWithDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Allocation, cfg.Allocation)
}

func TestLoadMissingFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	_, err := NewLoader(nil).Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.NewError(types.CONFIG_LOAD_FAILED, ""))
}

func TestLoadRejectsNonDescendingThresholds(t *testing.T) {
	path := writeConfig(t, `
scoring:
  thresholds:
    urgent: 5
    high: 8
    medium: 3
`)

	_, err := NewLoader(NewValidator()).LoadWithDefaults(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.NewError(types.CONFIG_VALIDATION_FAILED, ""))
}

func TestLoadRejectsBadBuffer(t *testing.T) {
	path := writeConfig(t, `
allocation:
  buffer_fraction: 1.5
`)

	_, err := NewLoader(NewValidator()).LoadWithDefaults(path)
	require.Error(t, err)
}

func TestValidatorFieldPathMessages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "loud"

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "loud")
}

func TestValidatorNilConfig(t *testing.T) {
	err := NewValidator().Validate(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.NewError(types.CONFIG_VALIDATION_FAILED, ""))
}

func TestEnvInterpolation(t *testing.T) {
	t.Setenv("BIGROOM_LOG_LEVEL", "warn")
	path := writeConfig(t, `
logging:
  level: ${BIGROOM_LOG_LEVEL}
`)

	cfg, err := NewLoader(NewValidator()).LoadWithDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestEnvInterpolationUnresolvedLeftAlone(t *testing.T) {
	assert.Equal(t, "${NOT_A_REAL_VAR_12345}", interpolateEnv("${NOT_A_REAL_VAR_12345}"))
}

func TestLoggerHonorsLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.Logger(&buf)

	logger.Info("hidden")
	logger.Warn("visible", "component", "config")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"visible"`)
	assert.Contains(t, out, `"component":"config"`)
}
