package store

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturelane/vceo/internal/models"
)

func insertPred(t *testing.T, db *sql.DB, confidence float64) *models.Prediction {
	t.Helper()
	p, err := InsertPrediction(db, &models.Prediction{
		AgentID:    "agent1",
		Type:       "revenue",
		Statement:  "MRR crosses $10k this quarter",
		Confidence: confidence,
		Timeframe:  "90d",
	})
	require.NoError(t, err)
	return p
}

func TestInsertPrediction_RoundTrip(t *testing.T) {
	db := testDB(t)

	p, err := InsertPrediction(db, &models.Prediction{
		AgentID:    "agent1",
		Type:       "churn",
		Statement:  "churn stays under 3%",
		Confidence: 0.7,
		Timeframe:  "30d",
		Metadata:   json.RawMessage(`{"cohort":"2026-08"}`),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.PredictionPending, p.Status)
	assert.Nil(t, p.WasCorrect)
	assert.Nil(t, p.CalibrationDelta)
	assert.Nil(t, p.ResolvedAt)
	assert.JSONEq(t, `{"cohort":"2026-08"}`, string(p.Metadata))
}

func TestInsertPrediction_RejectsBadMetadata(t *testing.T) {
	db := testDB(t)

	_, err := InsertPrediction(db, &models.Prediction{
		AgentID: "agent1", Type: "t", Statement: "s", Confidence: 0.5,
		Timeframe: "7d", Metadata: json.RawMessage(`{nope`),
	})
	require.Error(t, err)
}

func TestResolvePrediction_Once(t *testing.T) {
	db := testDB(t)
	p := insertPred(t, db, 0.8)

	actual := 12500.0
	require.NoError(t, ResolvePrediction(db, p.ID, true, &actual, "stripe dashboard", 0.04))

	got, err := GetPrediction(db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PredictionResolved, got.Status)
	require.NotNil(t, got.WasCorrect)
	assert.True(t, *got.WasCorrect)
	require.NotNil(t, got.ActualValue)
	assert.Equal(t, 12500.0, *got.ActualValue)
	assert.Equal(t, "stripe dashboard", got.Evidence)
	require.NotNil(t, got.CalibrationDelta)
	assert.InDelta(t, 0.04, *got.CalibrationDelta, 1e-9)
	assert.NotNil(t, got.ResolvedAt)

	// Second resolution is refused; the stored delta is immutable.
	err = ResolvePrediction(db, p.ID, false, nil, "", 0.64)
	assert.ErrorIs(t, err, ErrPredictionResolved)

	again, err := GetPrediction(db, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.04, *again.CalibrationDelta, 1e-9)
}

func TestResolvePrediction_NotFound(t *testing.T) {
	db := testDB(t)

	err := ResolvePrediction(db, "pred_missing", true, nil, "", 0)
	assert.ErrorIs(t, err, ErrPredictionNotFound)
}

func TestGetPrediction_NotFound(t *testing.T) {
	db := testDB(t)

	_, err := GetPrediction(db, "pred_missing")
	assert.ErrorIs(t, err, ErrPredictionNotFound)
}

func TestResolvedPredictionsSince(t *testing.T) {
	db := testDB(t)

	resolved := insertPred(t, db, 0.6)
	insertPred(t, db, 0.9) // stays pending
	require.NoError(t, ResolvePrediction(db, resolved.ID, true, nil, "", 0.16))

	all, err := ResolvedPredictionsSince(db, "agent1", time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, resolved.ID, all[0].ID)

	none, err := ResolvedPredictionsSince(db, "agent1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListPredictions_StatusFilter(t *testing.T) {
	db := testDB(t)

	resolved := insertPred(t, db, 0.5)
	pending := insertPred(t, db, 0.5)
	require.NoError(t, ResolvePrediction(db, resolved.ID, false, nil, "", 0.25))

	ps, err := ListPredictions(db, "agent1", models.PredictionPending, 10)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, pending.ID, ps[0].ID)

	ps, err = ListPredictions(db, "agent1", "", 10)
	require.NoError(t, err)
	assert.Len(t, ps, 2)
}
