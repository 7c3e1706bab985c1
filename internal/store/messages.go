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

// NewMessage captures the caller-supplied fields of a message to send.
type NewMessage struct {
	Type             models.MessageType
	FromAgent        string
	ToAgent          string
	Subject          string
	Body             json.RawMessage
	Priority         models.Priority
	CorrelationID    string
	ResponseDeadline *time.Time
}

func (n *NewMessage) validate() error {
	if n.Type == "" {
		return errors.New("message type is required")
	}
	if n.FromAgent == "" {
		return errors.New("from agent is required")
	}
	if n.ToAgent == "" {
		return errors.New("to agent is required")
	}
	if n.Priority == 0 {
		n.Priority = models.PriorityNormal
	}
	if !n.Priority.Valid() {
		return fmt.Errorf("invalid priority %d", n.Priority)
	}
	if n.Body != nil && !json.Valid(n.Body) {
		return errors.New("message body must be valid JSON")
	}
	return nil
}

// InsertMessage creates a new pending message.
func InsertMessage(db *sql.DB, n NewMessage) (*models.Message, error) {
	var msg *models.Message
	err := Transact(db, func(tx *sql.Tx) error {
		m, err := InsertMessageTx(tx, n)
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

// InsertMessageTx inserts and returns a pending message inside an
// existing transaction.
func InsertMessageTx(tx *sql.Tx, n NewMessage) (*models.Message, error) {
	if err := n.validate(); err != nil {
		return nil, err
	}

	id := generatePrefixedID("msg")

	var bodyVal, corrVal, deadlineVal any
	if n.Body != nil {
		bodyVal = string(n.Body)
	}
	if n.CorrelationID != "" {
		corrVal = n.CorrelationID
	}
	if n.ResponseDeadline != nil {
		deadlineVal = n.ResponseDeadline.UTC()
	}

	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO messages (id, type, from_agent, to_agent, subject, body, priority, status,
			correlation_id, response_deadline, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, id, string(n.Type), n.FromAgent, n.ToAgent, n.Subject, bodyVal, int(n.Priority), corrVal, deadlineVal)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	return GetMessageTx(tx, id)
}

// GetMessage fetches one message by id.
func GetMessage(db *sql.DB, id string) (*models.Message, error) {
	return getMessage(db, id)
}

// GetMessageTx is the in-transaction variant of GetMessage.
func GetMessageTx(tx *sql.Tx, id string) (*models.Message, error) {
	return getMessage(tx, id)
}

func getMessage(q Querier, id string) (*models.Message, error) {
	row := q.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanMessageRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	return msg, nil
}

// MessageFilter narrows ListMessages. Zero values mean "no filter".
type MessageFilter struct {
	ToAgent string
	Status  models.MessageStatus
	Limit   int
}

// ListMessages returns messages matching the filter, newest first.
func ListMessages(db *sql.DB, f MessageFilter) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE 1=1`
	var args []any
	if f.ToAgent != "" {
		query += ` AND to_agent = ?`
		args = append(args, f.ToAgent)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Message
	for rows.Next() {
		msg, scanErr := scanMessageRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// CompleteMessage marks a processing message completed with a result
// summary. The processing guard makes terminal transitions single-shot:
// a message that is already terminal (or was never claimed) is refused.
func CompleteMessage(db *sql.DB, id string, result json.RawMessage) error {
	return Transact(db, func(tx *sql.Tx) error {
		return CompleteMessageTx(tx, id, result)
	})
}

// CompleteMessageTx is the in-transaction variant.
func CompleteMessageTx(tx *sql.Tx, id string, result json.RawMessage) error {
	var resultVal any
	if result != nil {
		if !json.Valid(result) {
			return errors.New("result summary must be valid JSON")
		}
		resultVal = string(result)
	}
	return terminalTransitionTx(tx, id, models.MessageCompleted, resultVal, nil)
}

// FailMessage marks a processing message failed with error text.
func FailMessage(db *sql.DB, id, errText string) error {
	return Transact(db, func(tx *sql.Tx) error {
		return FailMessageTx(tx, id, errText)
	})
}

// FailMessageTx is the in-transaction variant.
func FailMessageTx(tx *sql.Tx, id, errText string) error {
	if errText == "" {
		errText = "handler failed without error detail"
	}
	return terminalTransitionTx(tx, id, models.MessageFailed, nil, errText)
}

func terminalTransitionTx(tx *sql.Tx, id string, to models.MessageStatus, resultVal, errVal any) error {
	res, err := tx.ExecContext(context.Background(), `
		UPDATE messages
		SET status = ?, result = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'processing'
	`, string(to), resultVal, errVal, id)
	if err != nil {
		return fmt.Errorf("failed to mark message %s: %w", to, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if ra == 0 {
		status := models.MessageStatus("unknown")
		var observed string
		if scanErr := tx.QueryRowContext(context.Background(),
			`SELECT status FROM messages WHERE id = ?`, id).Scan(&observed); scanErr == nil {
			status = models.MessageStatus(observed)
		}
		return &NotProcessingError{MessageID: id, Status: status}
	}
	return nil
}

// OverdueMessages returns pending messages addressed to the agent whose
// response deadline has elapsed, oldest deadline first.
func OverdueMessages(db *sql.DB, agentID string, now time.Time) ([]*models.Message, error) {
	rows, err := db.QueryContext(context.Background(), `
		SELECT `+messageColumns+` FROM messages
		WHERE to_agent = ? AND status = 'pending'
		  AND response_deadline IS NOT NULL AND response_deadline < ?
		ORDER BY response_deadline ASC
	`, agentID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Message
	for rows.Next() {
		msg, scanErr := scanMessageRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
