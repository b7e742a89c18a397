package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_Error(t *testing.T) {
	err := NewError(SCORING_FAILED, "job size must be positive")
	assert.Equal(t, "[SCORING_FAILED] job size must be positive", err.Error())
}

func TestEngineError_Error_WithCause(t *testing.T) {
	cause := fmt.Errorf("points = -3")
	err := WrapError(VALIDATION_FAILED, "estimate out of range", cause)
	assert.Equal(t, "[VALIDATION_FAILED] estimate out of range: points = -3", err.Error())
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := WrapError(BACKLOG_PARSE_FAILED, "bad document", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestEngineError_Is_MatchesByCode(t *testing.T) {
	a := NewError(CIRCULAR_DEPENDENCY, "cycle A -> B -> A")
	b := NewError(CIRCULAR_DEPENDENCY, "different message")
	c := NewError(SCORING_FAILED, "unrelated")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestEngineError_Is_ThroughWrapping(t *testing.T) {
	inner := NewFatalError(CIRCULAR_DEPENDENCY, "cycle detected")
	outer := fmt.Errorf("planning run aborted: %w", inner)

	assert.True(t, errors.Is(outer, NewError(CIRCULAR_DEPENDENCY, "")))
}

func TestEngineError_WithItem(t *testing.T) {
	err := NewError(DECOMPOSITION_FAILED, "criteria lost").WithItem("WTFB-17")
	assert.Equal(t, "WTFB-17", err.ItemKey)
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"stage-local", NewError(SCORING_FAILED, "x"), false},
		{"fatal", NewFatalError(CIRCULAR_DEPENDENCY, "x"), true},
		{"wrapped fatal", fmt.Errorf("run: %w", NewFatalError(EMPTY_ITERATIONS, "x")), true},
		{"plain error", errors.New("anything"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	cause := errors.New("kahn left 3 nodes unprocessed")
	err := WrapFatalError(CIRCULAR_DEPENDENCY, "unresolved cycle", cause)

	require.NotNil(t, err)
	assert.True(t, err.Fatal)
	assert.Equal(t, CIRCULAR_DEPENDENCY, err.Code)
	assert.True(t, errors.Is(err, cause))
}
