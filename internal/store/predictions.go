package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/venturelane/vceo/internal/models"
)

// InsertPrediction persists a validated prediction as pending. Field
// validation happens in the truth package; the store only guards JSON
// well-formedness of metadata.
func InsertPrediction(db *sql.DB, p *models.Prediction) (*models.Prediction, error) {
	if p.Metadata != nil && !json.Valid(p.Metadata) {
		return nil, errors.New("prediction metadata must be valid JSON")
	}

	id := generatePrefixedID("pred")

	var metaVal any
	if p.Metadata != nil {
		metaVal = string(p.Metadata)
	}

	err := Transact(db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), `
			INSERT INTO predictions (id, agent_id, type, statement, confidence,
				timeframe, metadata, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', CURRENT_TIMESTAMP)
		`, id, p.AgentID, p.Type, p.Statement, p.Confidence, p.Timeframe, metaVal)
		if err != nil {
			return fmt.Errorf("failed to insert prediction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetPrediction(db, id)
}

// GetPrediction fetches one prediction by id.
func GetPrediction(db *sql.DB, id string) (*models.Prediction, error) {
	row := db.QueryRowContext(context.Background(),
		`SELECT `+predictionColumns+` FROM predictions WHERE id = ?`, id)
	p, err := scanPredictionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPredictionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prediction: %w", err)
	}
	return p, nil
}

// ResolvePrediction transitions a pending prediction to resolved with
// the outcome and the precomputed calibration delta. Resolution is
// guarded on status='pending' so it happens exactly once; a second
// attempt returns ErrPredictionResolved.
func ResolvePrediction(db *sql.DB, id string, wasCorrect bool, actualValue *float64, evidence string, delta float64) error {
	if id == "" {
		return errors.New("prediction id is required")
	}

	var actualVal, evidenceVal any
	if actualValue != nil {
		actualVal = *actualValue
	}
	if evidence != "" {
		evidenceVal = evidence
	}

	return Transact(db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(context.Background(), `
			UPDATE predictions
			SET status = 'resolved', was_correct = ?, actual_value = ?,
			    evidence = ?, calibration_delta = ?, resolved_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = 'pending'
		`, wasCorrect, actualVal, evidenceVal, delta, id)
		if err != nil {
			return fmt.Errorf("failed to resolve prediction: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if ra == 0 {
			var status string
			scanErr := tx.QueryRowContext(context.Background(),
				`SELECT status FROM predictions WHERE id = ?`, id).Scan(&status)
			if errors.Is(scanErr, sql.ErrNoRows) {
				return ErrPredictionNotFound
			}
			return ErrPredictionResolved
		}
		return nil
	})
}

// ResolvedPredictionsSince returns resolved predictions for the agent
// with resolved_at at or after cutoff. A zero cutoff means unbounded.
func ResolvedPredictionsSince(db *sql.DB, agentID string, cutoff time.Time) ([]*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions
		WHERE agent_id = ? AND status = 'resolved'`
	args := []any{agentID}
	if !cutoff.IsZero() {
		query += ` AND resolved_at >= ?`
		args = append(args, cutoff.UTC())
	}
	query += ` ORDER BY resolved_at ASC`

	rows, err := db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolved predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Prediction
	for rows.Next() {
		p, scanErr := scanPredictionRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPredictions returns the agent's predictions, newest first.
func ListPredictions(db *sql.DB, agentID string, status models.PredictionStatus, limit int) ([]*models.Prediction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE agent_id = ?`
	args := []any{agentID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Prediction
	for rows.Next() {
		p, scanErr := scanPredictionRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
