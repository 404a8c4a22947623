package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCELDPValidatorRejectsFloatLiterals(t *testing.T) {
	v := NewCELDPValidator()
	result := v.Validate("x > 1.5")
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Issues)
	assert.Equal(t, CELDPRuleNoFloats, result.Issues[0].RuleID)
}

func TestCELDPValidatorRejectsNowAccess(t *testing.T) {
	v := NewCELDPValidator()
	result := v.Validate("now() > deadline")
	assert.False(t, result.Valid)
}

func TestCELDPValidatorRejectsMapIterationDependence(t *testing.T) {
	v := NewCELDPValidator()
	result := v.Validate("meta.keys()[0] == 'x'")
	assert.False(t, result.Valid)
}

func TestCELDPValidatorAcceptsSimpleIntegerComparison(t *testing.T) {
	v := NewCELDPValidator()
	result := v.Validate("modules.size() > 0")
	assert.True(t, result.Valid)
}

func TestCELDPEvaluatorReturnsCrashOnInvalidExpression(t *testing.T) {
	e := NewCELDPEvaluator()
	result, err := e.Evaluate("now()", map[string]any{})
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Equal(t, DeterminismBreach, result.Error.Code)
}

func TestCELDPEvaluatorEvaluatesValidExpression(t *testing.T) {
	e := NewCELDPEvaluator()
	result, err := e.Evaluate("1 == 1", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, result.Error)
	assert.Equal(t, true, result.Value)
}
