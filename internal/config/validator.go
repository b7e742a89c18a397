package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

// Validator validates configuration values.
type Validator interface {
	Validate(cfg *Config) error
}

type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a Validator backed by go-playground/validator.
func NewValidator() Validator {
	return &validatorImpl{validate: validator.New()}
}

// Validate runs struct tag validation, then the cross-field checks
// the tags cannot express.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return types.NewFatalError(types.CONFIG_VALIDATION_FAILED, "configuration is nil")
	}

	if err := v.validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return types.WrapFatalError(types.CONFIG_VALIDATION_FAILED, "validation error", err)
		}
		messages := make([]string, 0, len(validationErrs))
		for _, e := range validationErrs {
			messages = append(messages, formatValidationError(e))
		}
		return types.NewFatalError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(messages, "\n  - ")))
	}

	// Component invariants tags cannot express: descending tier
	// thresholds, buffer in [0,1), min below max sub-items.
	for _, check := range []struct {
		section string
		err     error
	}{
		{"scoring.thresholds", cfg.Scoring.Thresholds.Validate()},
		{"decomposition", cfg.Decomposition.Validate()},
		{"allocation", cfg.Allocation.Validate()},
		{"readiness", cfg.Readiness.Validate()},
	} {
		if check.err != nil {
			return types.WrapFatalError(types.CONFIG_VALIDATION_FAILED,
				fmt.Sprintf("configuration section %s rejected", check.section), check.err)
		}
	}

	if cfg.Analysis.ConfidenceThreshold < 0 || cfg.Analysis.ConfidenceThreshold > 1 {
		return types.NewFatalError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("analysis.confidence_threshold must be within [0,1] (got: %.2f)",
				cfg.Analysis.ConfidenceThreshold))
	}

	return nil
}

// formatValidationError renders one tag failure with its field path.
func formatValidationError(e validator.FieldError) string {
	fieldPath := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldPath)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "lt":
		return fmt.Sprintf("%s must be less than %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", fieldPath, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", fieldPath, e.Tag(), e.Value())
	}
}

// formatFieldPath converts a validator namespace to the config file's
// key path: "Config.Scoring.Thresholds.Urgent" -> "scoring.thresholds.urgent".
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) <= 1 {
		return namespace
	}

	result := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		result = append(result, camelToSnake(parts[i]))
	}
	return strings.Join(result, ".")
}

func camelToSnake(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
