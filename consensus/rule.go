package consensus

import (
	"context"
	"fmt"

	"github.com/PaesslerAG/gval"
)

// DefaultAttestationRule accepts attestations at or above the threshold
const DefaultAttestationRule = "confidence >= threshold"

var ruleLanguage = gval.NewLanguage(gval.Arithmetic(), gval.Text(), gval.PropositionalLogic())

// AttestationRule is a boolean gval expression over an attestation. It sees
// confidence, threshold, model_id, nonce and timestamp.
type AttestationRule struct {
	expression string
	threshold  float64
	eval       gval.Evaluable
}

// NewAttestationRule compiles expression; an empty expression means
// DefaultAttestationRule.
func NewAttestationRule(expression string, threshold float64) (*AttestationRule, error) {
	if expression == "" {
		expression = DefaultAttestationRule
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("confidence threshold %.4f outside [0,1]", threshold)
	}
	eval, err := ruleLanguage.NewEvaluable(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid attestation rule %q: %w", expression, err)
	}
	return &AttestationRule{
		expression: expression,
		threshold:  threshold,
		eval:       eval,
	}, nil
}

// Expression returns the rule source
func (r *AttestationRule) Expression() string {
	return r.expression
}

// Threshold returns the configured confidence threshold
func (r *AttestationRule) Threshold() float64 {
	return r.threshold
}

// Accept evaluates the rule against a.
func (r *AttestationRule) Accept(ctx context.Context, a *Attestation) (bool, error) {
	params := map[string]interface{}{
		"confidence": a.Confidence,
		"threshold":  r.threshold,
		"model_id":   a.ModelID,
		"nonce":      float64(a.Nonce),
		"timestamp":  float64(a.Timestamp),
	}
	ok, err := r.eval.EvalBool(ctx, params)
	if err != nil {
		return false, fmt.Errorf("error evaluating attestation rule %q: %w", r.expression, err)
	}
	return ok, nil
}
