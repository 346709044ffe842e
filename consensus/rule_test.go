package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAttestationRule(t *testing.T) {
	rule, err := NewAttestationRule("", 0.75)
	require.NoError(t, err)
	assert.Equal(t, DefaultAttestationRule, rule.Expression())

	tests := []struct {
		confidence float64
		want       bool
	}{
		{0.5, false},
		{0.75, true},
		{0.9, true},
	}
	for _, tt := range tests {
		ok, err := rule.Accept(context.Background(), &Attestation{Confidence: tt.confidence})
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "confidence %.2f", tt.confidence)
	}
}

func TestCustomAttestationRule(t *testing.T) {
	rule, err := NewAttestationRule(`confidence >= threshold && model_id == "approved"`, 0.5)
	require.NoError(t, err)

	ok, err := rule.Accept(context.Background(), &Attestation{Confidence: 0.6, ModelID: "approved"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rule.Accept(context.Background(), &Attestation{Confidence: 0.6, ModelID: "other"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAttestationRuleErrors(t *testing.T) {
	_, err := NewAttestationRule("confidence >=", 0.5)
	assert.Error(t, err)

	_, err = NewAttestationRule("", 1.5)
	assert.Error(t, err)

	_, err = NewAttestationRule("", -0.1)
	assert.Error(t, err)
}
