package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/venturelane/vceo/internal/models"
)

// rowScanner is the subset of *sql.Row / *sql.Rows used by scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanNullString converts sql.NullString to string (empty if NULL).
func scanNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// scanNullTime converts sql.NullTime to *time.Time (nil if NULL).
func scanNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// scanNullJSON converts sql.NullString to json.RawMessage (nil if NULL).
func scanNullJSON(ns sql.NullString) json.RawMessage {
	if ns.Valid && ns.String != "" {
		return json.RawMessage(ns.String)
	}
	return nil
}

// messageColumns is the canonical select list for message rows; keep in
// sync with scanMessageRow.
const messageColumns = `id, type, from_agent, to_agent, subject, body, priority, status,
	correlation_id, response_deadline, result, error, created_at, updated_at`

// scanMessageRow scans and hydrates one message row.
func scanMessageRow(row rowScanner) (*models.Message, error) {
	var (
		m        models.Message
		body     sql.NullString
		corr     sql.NullString
		deadline sql.NullTime
		result   sql.NullString
		errText  sql.NullString
	)
	err := row.Scan(
		&m.ID, &m.Type, &m.FromAgent, &m.ToAgent, &m.Subject, &body,
		&m.Priority, &m.Status, &corr, &deadline, &result, &errText,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Body = scanNullJSON(body)
	m.CorrelationID = scanNullString(corr)
	m.ResponseDeadline = scanNullTime(deadline)
	m.Result = scanNullJSON(result)
	m.Error = scanNullString(errText)
	return &m, nil
}

// predictionColumns is the canonical select list for prediction rows;
// keep in sync with scanPredictionRow.
const predictionColumns = `id, agent_id, type, statement, confidence, timeframe, metadata,
	status, was_correct, actual_value, evidence, calibration_delta, created_at, resolved_at`

// scanPredictionRow scans and hydrates one prediction row.
func scanPredictionRow(row rowScanner) (*models.Prediction, error) {
	var (
		p          models.Prediction
		metadata   sql.NullString
		wasCorrect sql.NullBool
		actual     sql.NullFloat64
		evidence   sql.NullString
		delta      sql.NullFloat64
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.AgentID, &p.Type, &p.Statement, &p.Confidence, &p.Timeframe,
		&metadata, &p.Status, &wasCorrect, &actual, &evidence, &delta,
		&p.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Metadata = scanNullJSON(metadata)
	if wasCorrect.Valid {
		v := wasCorrect.Bool
		p.WasCorrect = &v
	}
	if actual.Valid {
		v := actual.Float64
		p.ActualValue = &v
	}
	p.Evidence = scanNullString(evidence)
	if delta.Valid {
		v := delta.Float64
		p.CalibrationDelta = &v
	}
	p.ResolvedAt = scanNullTime(resolvedAt)
	return &p, nil
}
