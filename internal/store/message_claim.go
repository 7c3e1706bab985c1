package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/venturelane/vceo/internal/models"
)

// ClaimNextMessage selects the best pending message addressed to the
// agent and atomically transitions it to 'processing'.
//
// Selection: priority DESC, created_at ASC, id ASC. The id tie-break
// makes ties on both priority and age resolve the same way on every
// backing store.
//
// The claim itself is a conditional update guarded on status='pending'.
// Zero rows affected means a concurrent runtime won the race; that is
// reported as (nil, nil), "nothing claimed this cycle", not an error.
// This compare-and-swap is the system's sole concurrency primitive: no
// lock table, no lease.
func ClaimNextMessage(db *sql.DB, agentID string) (*models.Message, error) {
	var msg *models.Message
	err := Transact(db, func(tx *sql.Tx) error {
		m, err := ClaimNextMessageTx(tx, agentID)
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ClaimNextMessageTx is the in-transaction variant.
func ClaimNextMessageTx(tx *sql.Tx, agentID string) (*models.Message, error) {
	if agentID == "" {
		return nil, errors.New("agent id is required")
	}

	var id string
	err := tx.QueryRowContext(context.Background(), `
		SELECT id FROM messages
		WHERE to_agent = ? AND status = 'pending'
		ORDER BY priority DESC, created_at ASC, id ASC
		LIMIT 1
	`, agentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select next message: %w", err)
	}

	if err := ClaimMessageTx(tx, id); err != nil {
		if errors.Is(err, ErrClaimLost) {
			// Lost the race between select and update. Same outcome as
			// an empty queue: the caller loops again.
			return nil, nil
		}
		return nil, err
	}

	return GetMessageTx(tx, id)
}

// ClaimMessage attempts to claim a specific pending message. Returns
// false when the message is no longer pending (claimed elsewhere or
// already terminal).
func ClaimMessage(db *sql.DB, id string) (bool, error) {
	err := Transact(db, func(tx *sql.Tx) error {
		return ClaimMessageTx(tx, id)
	})
	if errors.Is(err, ErrClaimLost) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClaimMessageTx performs the conditional pending -> processing update.
// Zero rows affected means the message is no longer pending; that is
// reported as ErrClaimLost, which RetryWithBackoff never retries.
func ClaimMessageTx(tx *sql.Tx, id string) error {
	if id == "" {
		return errors.New("message id is required")
	}

	res, err := tx.ExecContext(context.Background(), `
		UPDATE messages
		SET status = 'processing', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to claim message: %w", err)
	}

	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if ra == 0 {
		return ErrClaimLost
	}
	return nil
}
