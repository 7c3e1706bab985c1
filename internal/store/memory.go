package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/venturelane/vceo/internal/models"
)

// SaveMemory appends a versioned memory record for (agent, venture,
// type) and marks prior versions non-current. Records are never mutated
// after creation; "update" means appending the next version.
//
// VentureID is mandatory. Memory is partitioned per venture so one
// venture's context can never leak into another's processing cycles.
func SaveMemory(db *sql.DB, u models.MemoryUpdate, agentID string) (*models.MemoryRecord, error) {
	if agentID == "" {
		return nil, errors.New("agent id is required")
	}
	if u.VentureID == "" {
		return nil, ErrVentureRequired
	}
	if u.MemoryType == "" {
		return nil, errors.New("memory type is required")
	}
	if len(u.Content) == 0 || !json.Valid(u.Content) {
		return nil, errors.New("memory content must be valid JSON")
	}

	var rec *models.MemoryRecord
	err := Transact(db, func(tx *sql.Tx) error {
		var version int
		err := tx.QueryRowContext(context.Background(), `
			SELECT COALESCE(MAX(version), 0) FROM agent_memory
			WHERE agent_id = ? AND venture_id = ? AND memory_type = ?
		`, agentID, u.VentureID, u.MemoryType).Scan(&version)
		if err != nil {
			return fmt.Errorf("failed to read memory version: %w", err)
		}
		version++

		_, err = tx.ExecContext(context.Background(), `
			UPDATE agent_memory SET is_current = 0
			WHERE agent_id = ? AND venture_id = ? AND memory_type = ? AND is_current = 1
		`, agentID, u.VentureID, u.MemoryType)
		if err != nil {
			return fmt.Errorf("failed to supersede memory versions: %w", err)
		}

		res, err := tx.ExecContext(context.Background(), `
			INSERT INTO agent_memory (agent_id, venture_id, memory_type, content,
				version, is_current, created_at)
			VALUES (?, ?, ?, ?, ?, 1, CURRENT_TIMESTAMP)
		`, agentID, u.VentureID, u.MemoryType, string(u.Content), version)
		if err != nil {
			return fmt.Errorf("failed to insert memory record: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get memory record id: %w", err)
		}

		row := tx.QueryRowContext(context.Background(), `
			SELECT id, agent_id, venture_id, memory_type, content, version, is_current, created_at
			FROM agent_memory WHERE id = ?
		`, id)
		r, err := scanMemoryRow(row)
		if err != nil {
			return fmt.Errorf("failed to fetch memory record: %w", err)
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CurrentMemory returns the current version of each memory type for the
// agent within one venture.
func CurrentMemory(db *sql.DB, agentID, ventureID string) ([]*models.MemoryRecord, error) {
	if ventureID == "" {
		return nil, ErrVentureRequired
	}
	rows, err := db.QueryContext(context.Background(), `
		SELECT id, agent_id, venture_id, memory_type, content, version, is_current, created_at
		FROM agent_memory
		WHERE agent_id = ? AND venture_id = ? AND is_current = 1
		ORDER BY memory_type ASC
	`, agentID, ventureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.MemoryRecord
	for rows.Next() {
		r, scanErr := scanMemoryRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MemoryHistory returns every version of one memory type, oldest first.
func MemoryHistory(db *sql.DB, agentID, ventureID, memoryType string) ([]*models.MemoryRecord, error) {
	if ventureID == "" {
		return nil, ErrVentureRequired
	}
	rows, err := db.QueryContext(context.Background(), `
		SELECT id, agent_id, venture_id, memory_type, content, version, is_current, created_at
		FROM agent_memory
		WHERE agent_id = ? AND venture_id = ? AND memory_type = ?
		ORDER BY version ASC
	`, agentID, ventureID, memoryType)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.MemoryRecord
	for rows.Next() {
		r, scanErr := scanMemoryRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanMemoryRow(row rowScanner) (*models.MemoryRecord, error) {
	var (
		r       models.MemoryRecord
		content string
		current int
	)
	if err := row.Scan(&r.ID, &r.AgentID, &r.VentureID, &r.MemoryType,
		&content, &r.Version, &current, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Content = json.RawMessage(content)
	r.IsCurrent = current == 1
	return &r, nil
}
