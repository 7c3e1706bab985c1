package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/venturelane/vceo/internal/models"
)

// GrantCapability records that an agent may perform a capability.
// Granting twice is a no-op.
func GrantCapability(db *sql.DB, agentID, capability string) error {
	if agentID == "" {
		return errors.New("agent id is required")
	}
	if capability == "" {
		return errors.New("capability is required")
	}
	return Transact(db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), `
			INSERT INTO agent_capabilities (agent_id, capability, granted_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(agent_id, capability) DO NOTHING
		`, agentID, capability)
		if err != nil {
			return fmt.Errorf("failed to grant capability: %w", err)
		}
		return nil
	})
}

// RevokeCapability removes a grant. Revoking an absent grant is a no-op.
func RevokeCapability(db *sql.DB, agentID, capability string) error {
	if agentID == "" {
		return errors.New("agent id is required")
	}
	return Transact(db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(),
			`DELETE FROM agent_capabilities WHERE agent_id = ? AND capability = ?`,
			agentID, capability)
		if err != nil {
			return fmt.Errorf("failed to revoke capability: %w", err)
		}
		return nil
	})
}

// HasCapability reports whether the agent holds the capability or the
// wildcard grant.
func HasCapability(db *sql.DB, agentID, capability string) (bool, error) {
	var one int
	err := db.QueryRowContext(context.Background(), `
		SELECT 1 FROM agent_capabilities
		WHERE agent_id = ? AND capability IN (?, ?)
		LIMIT 1
	`, agentID, capability, models.CapabilityWildcard).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check capability: %w", err)
	}
	return true, nil
}

// ListCapabilities returns the agent's grants, oldest first.
func ListCapabilities(db *sql.DB, agentID string) ([]*models.Capability, error) {
	rows, err := db.QueryContext(context.Background(), `
		SELECT agent_id, capability, granted_at
		FROM agent_capabilities
		WHERE agent_id = ?
		ORDER BY granted_at ASC, capability ASC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list capabilities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Capability
	for rows.Next() {
		var c models.Capability
		if scanErr := rows.Scan(&c.AgentID, &c.Capability, &c.GrantedAt); scanErr != nil {
			return nil, scanErr
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
