package truth

import "fmt"

// Hypothesis types accepted by ValidateBusinessHypothesis.
var hypothesisTypes = map[string]bool{
	"market":      true,
	"customer":    true,
	"product":     true,
	"financial":   true,
	"operational": true,
}

// hypothesisRequiredFields is the fixed schema for a business hypothesis.
var hypothesisRequiredFields = []string{
	"hypothesis_type",
	"statement",
	"confidence_level",
	"supporting_evidence",
}

// ValidateBusinessHypothesis checks a hypothesis document against the
// fixed schema: required fields present, an enumerated type, confidence
// within [0,1], and array-typed supporting evidence. Every violation
// found is reported in one ValidationError rather than stopping at the
// first.
func ValidateBusinessHypothesis(h map[string]any) error {
	var violations []string

	for _, field := range hypothesisRequiredFields {
		if _, ok := h[field]; !ok {
			violations = append(violations, fmt.Sprintf("missing required field %q", field))
		}
	}

	if raw, ok := h["hypothesis_type"]; ok {
		t, isString := raw.(string)
		if !isString || !hypothesisTypes[t] {
			violations = append(violations, fmt.Sprintf("hypothesis_type %v is not a recognized type", raw))
		}
	}

	if raw, ok := h["statement"]; ok {
		if s, isString := raw.(string); !isString || s == "" {
			violations = append(violations, "statement must be a non-empty string")
		}
	}

	if raw, ok := h["confidence_level"]; ok {
		c, isNumber := toFloat(raw)
		if !isNumber || c < 0 || c > 1 {
			violations = append(violations, fmt.Sprintf("confidence_level %v must be a number between 0 and 1", raw))
		}
	}

	if raw, ok := h["supporting_evidence"]; ok {
		if _, isArray := raw.([]any); !isArray {
			violations = append(violations, "supporting_evidence must be an array")
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// toFloat accepts the numeric shapes a decoded JSON document can carry.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
