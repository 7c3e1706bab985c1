package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RuntimeEvent is one row of the append-only runtime audit log.
type RuntimeEvent struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	AgentID   string    `json:"agent_id"`
	MessageID string    `json:"message_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertRuntimeEvent appends one audit event.
func InsertRuntimeEvent(db *sql.DB, kind, agentID, messageID, detail string) (int64, error) {
	if kind == "" {
		return 0, errors.New("event kind is required")
	}
	if agentID == "" {
		return 0, errors.New("agent id is required")
	}

	var msgVal, detailVal any
	if messageID != "" {
		msgVal = messageID
	}
	if detail != "" {
		detailVal = detail
	}

	res, err := db.ExecContext(context.Background(), `
		INSERT INTO runtime_events (kind, agent_id, message_id, detail, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, kind, agentID, msgVal, detailVal)
	if err != nil {
		return 0, fmt.Errorf("failed to insert runtime event: %w", err)
	}
	return res.LastInsertId()
}

// RecordRuntimeEvent is the best-effort variant: failures are logged
// and swallowed. Audit writes must never fail the operation that
// triggered them.
func RecordRuntimeEvent(db *sql.DB, kind, agentID, messageID, detail string) {
	if _, err := InsertRuntimeEvent(db, kind, agentID, messageID, detail); err != nil {
		slog.Warn("runtime event write failed",
			"kind", kind, "agent", agentID, "error", err.Error())
	}
}

// ListRuntimeEvents returns the agent's recent events, newest first.
func ListRuntimeEvents(db *sql.DB, agentID string, limit int) ([]*RuntimeEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(context.Background(), `
		SELECT id, kind, agent_id, message_id, detail, created_at
		FROM runtime_events
		WHERE agent_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runtime events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*RuntimeEvent
	for rows.Next() {
		var (
			e      RuntimeEvent
			msgID  sql.NullString
			detail sql.NullString
		)
		if scanErr := rows.Scan(&e.ID, &e.Kind, &e.AgentID, &msgID, &detail, &e.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		e.MessageID = scanNullString(msgID)
		e.Detail = scanNullString(detail)
		out = append(out, &e)
	}
	return out, rows.Err()
}
