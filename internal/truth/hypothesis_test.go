package truth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHypothesis() map[string]any {
	return map[string]any{
		"hypothesis_type":     "market",
		"statement":           "SMBs will pay for automated bookkeeping",
		"confidence_level":    0.7,
		"supporting_evidence": []any{"12 customer interviews", "competitor pricing"},
	}
}

func TestValidateBusinessHypothesis_Valid(t *testing.T) {
	assert.NoError(t, ValidateBusinessHypothesis(validHypothesis()))
}

func TestValidateBusinessHypothesis_MissingFields(t *testing.T) {
	err := ValidateBusinessHypothesis(map[string]any{})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Violations, 4)
}

func TestValidateBusinessHypothesis_CollectsMultipleViolations(t *testing.T) {
	h := validHypothesis()
	h["hypothesis_type"] = "astrology"
	h["confidence_level"] = 1.5

	err := ValidateBusinessHypothesis(h)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Violations, 2, "both violations in one error")
}

func TestValidateBusinessHypothesis_TypeEnumeration(t *testing.T) {
	for _, valid := range []string{"market", "customer", "product", "financial", "operational"} {
		h := validHypothesis()
		h["hypothesis_type"] = valid
		assert.NoError(t, ValidateBusinessHypothesis(h), valid)
	}

	h := validHypothesis()
	h["hypothesis_type"] = 42
	assert.Error(t, ValidateBusinessHypothesis(h))
}

func TestValidateBusinessHypothesis_ConfidenceBounds(t *testing.T) {
	for _, c := range []any{0.0, 1.0, 0.5, 1} {
		h := validHypothesis()
		h["confidence_level"] = c
		assert.NoError(t, ValidateBusinessHypothesis(h))
	}

	for _, c := range []any{-0.1, 1.01, "high"} {
		h := validHypothesis()
		h["confidence_level"] = c
		assert.Error(t, ValidateBusinessHypothesis(h))
	}
}

func TestValidateBusinessHypothesis_EvidenceMustBeArray(t *testing.T) {
	h := validHypothesis()
	h["supporting_evidence"] = "just trust me"

	err := ValidateBusinessHypothesis(h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supporting_evidence must be an array")
}

func TestValidateBusinessHypothesis_StatementNonEmpty(t *testing.T) {
	h := validHypothesis()
	h["statement"] = ""
	assert.Error(t, ValidateBusinessHypothesis(h))
}
