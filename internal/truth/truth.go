// Package truth logs forward-looking predictions, resolves them against
// observed outcomes, and computes the calibration statistics used to
// audit agent decision quality over time.
package truth

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/venturelane/vceo/internal/models"
	"github.com/venturelane/vceo/internal/store"
)

// ValidationError enumerates every violation found in one input, not
// just the first.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Violations, "; "))
}

// NewPrediction captures the caller-supplied fields of a prediction.
type NewPrediction struct {
	AgentID    string
	Type       string
	Statement  string
	Confidence float64
	Timeframe  string
	Metadata   json.RawMessage
}

// Outcome is the observed result a prediction resolves against.
type Outcome struct {
	WasCorrect  bool
	ActualValue *float64
	Evidence    string
}

// Recorder is the truth layer's write path.
type Recorder struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRecorder builds a Recorder over the shared store.
func NewRecorder(db *sql.DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{db: db, logger: logger}
}

// LogPrediction validates and persists a pending prediction.
//
// Validation failures are rejected synchronously with every violation
// enumerated. A persistence failure, by contrast, is logged and returns
// (nil, nil): the truth layer never blocks the operation whose outcome
// it is predicting.
func (r *Recorder) LogPrediction(n NewPrediction) (*models.Prediction, error) {
	var violations []string
	if n.AgentID == "" {
		violations = append(violations, "agent_id is required")
	}
	if n.Type == "" {
		violations = append(violations, "type is required")
	}
	if n.Statement == "" {
		violations = append(violations, "statement is required")
	}
	if n.Confidence < 0 || n.Confidence > 1 {
		violations = append(violations, fmt.Sprintf("confidence must be between 0 and 1, got %g", n.Confidence))
	}
	if n.Timeframe == "" {
		violations = append(violations, "timeframe is required")
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	p, err := store.InsertPrediction(r.db, &models.Prediction{
		AgentID:    n.AgentID,
		Type:       n.Type,
		Statement:  n.Statement,
		Confidence: n.Confidence,
		Timeframe:  n.Timeframe,
		Metadata:   n.Metadata,
	})
	if err != nil {
		r.logger.Warn("prediction persistence failed",
			"agent", n.AgentID, "type", n.Type, "error", err.Error())
		return nil, nil
	}

	store.RecordRuntimeEvent(r.db, models.EventKindPredictionLogged, n.AgentID, "", p.ID)
	return p, nil
}

// LogOutcome resolves a pending prediction against its observed outcome.
// The calibration delta is (confidence - actual)^2 where actual is 1
// for a correct prediction and 0 otherwise; it is computed here, once,
// and never recomputed. A missing id is an error, as is resolving a
// prediction twice.
func (r *Recorder) LogOutcome(predictionID string, o Outcome) (*models.Prediction, error) {
	p, err := store.GetPrediction(r.db, predictionID)
	if err != nil {
		return nil, err
	}

	actual := 0.0
	if o.WasCorrect {
		actual = 1.0
	}
	delta := (p.Confidence - actual) * (p.Confidence - actual)

	if err := store.ResolvePrediction(r.db, predictionID, o.WasCorrect, o.ActualValue, o.Evidence, delta); err != nil {
		return nil, err
	}

	store.RecordRuntimeEvent(r.db, models.EventKindPredictionScored, p.AgentID, "",
		fmt.Sprintf("%s delta=%.4f", predictionID, delta))

	return store.GetPrediction(r.db, predictionID)
}
