package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/venturelane/vceo/internal/models"
)

// GetBudget returns the agent's budget row, or nil when none is
// configured. Callers interpret nil as "unlimited" (fail-open).
func GetBudget(db *sql.DB, agentID string) (*models.Budget, error) {
	var (
		b       models.Budget
		venture sql.NullString
	)
	err := db.QueryRowContext(context.Background(), `
		SELECT agent_id, venture_id, daily_limit, daily_consumed,
		       monthly_limit, monthly_consumed, warning_threshold,
		       critical_threshold, updated_at
		FROM budgets WHERE agent_id = ?
	`, agentID).Scan(
		&b.AgentID, &venture, &b.DailyLimit, &b.DailyConsumed,
		&b.MonthlyLimit, &b.MonthlyConsumed, &b.WarningThreshold,
		&b.CriticalThreshold, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch budget: %w", err)
	}
	b.VentureID = scanNullString(venture)
	return &b, nil
}

// SetBudget creates or replaces the agent's budget limits. Consumption
// counters are preserved on update.
func SetBudget(db *sql.DB, b models.Budget) error {
	if b.AgentID == "" {
		return errors.New("agent id is required")
	}
	if b.DailyLimit < 0 || b.MonthlyLimit < 0 {
		return errors.New("budget limits must be non-negative")
	}
	if b.WarningThreshold <= 0 {
		b.WarningThreshold = 80
	}
	if b.CriticalThreshold <= 0 {
		b.CriticalThreshold = 95
	}

	var ventureVal any
	if b.VentureID != "" {
		ventureVal = b.VentureID
	}

	return Transact(db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), `
			INSERT INTO budgets (agent_id, venture_id, daily_limit, monthly_limit,
				warning_threshold, critical_threshold, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(agent_id) DO UPDATE SET
				venture_id = excluded.venture_id,
				daily_limit = excluded.daily_limit,
				monthly_limit = excluded.monthly_limit,
				warning_threshold = excluded.warning_threshold,
				critical_threshold = excluded.critical_threshold,
				updated_at = CURRENT_TIMESTAMP
		`, b.AgentID, ventureVal, b.DailyLimit, b.MonthlyLimit,
			b.WarningThreshold, b.CriticalThreshold)
		if err != nil {
			return fmt.Errorf("failed to upsert budget: %w", err)
		}
		return nil
	})
}

// AddConsumption adds actual cost to both ledger counters. Missing
// budget rows are a no-op: an unbudgeted agent has nothing to record
// against.
func AddConsumption(db *sql.DB, agentID string, cost float64) error {
	if agentID == "" {
		return errors.New("agent id is required")
	}
	if cost < 0 {
		return errors.New("cost must be non-negative")
	}
	return Transact(db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), `
			UPDATE budgets
			SET daily_consumed = daily_consumed + ?,
			    monthly_consumed = monthly_consumed + ?,
			    updated_at = CURRENT_TIMESTAMP
			WHERE agent_id = ?
		`, cost, cost, agentID)
		if err != nil {
			return fmt.Errorf("failed to record consumption: %w", err)
		}
		return nil
	})
}

// ResetDailyConsumption zeroes daily counters for all agents. Intended
// for a scheduled rollover job.
func ResetDailyConsumption(db *sql.DB) error {
	return Transact(db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(),
			`UPDATE budgets SET daily_consumed = 0, updated_at = CURRENT_TIMESTAMP`)
		if err != nil {
			return fmt.Errorf("failed to reset daily consumption: %w", err)
		}
		return nil
	})
}

// InsertBudgetDecision appends one admission decision to the audit log.
func InsertBudgetDecision(db *sql.DB, d models.BudgetDecision) error {
	if d.AgentID == "" {
		return errors.New("agent id is required")
	}
	if d.Decision != models.DecisionAllowed && d.Decision != models.DecisionBlocked {
		return fmt.Errorf("invalid decision %q", d.Decision)
	}

	var reasonVal any
	if d.Reason != "" {
		reasonVal = d.Reason
	}

	_, err := db.ExecContext(context.Background(), `
		INSERT INTO budget_decision_log (agent_id, operation_type, decision, reason,
			daily_remaining, monthly_remaining, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, d.AgentID, d.OperationType, d.Decision, reasonVal, d.DailyRemaining, d.MonthlyRemaining)
	if err != nil {
		return fmt.Errorf("failed to insert budget decision: %w", err)
	}
	return nil
}

// ListBudgetDecisions returns the agent's recent decisions, newest first.
func ListBudgetDecisions(db *sql.DB, agentID string, limit int) ([]*models.BudgetDecision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(context.Background(), `
		SELECT id, agent_id, operation_type, decision, reason,
		       daily_remaining, monthly_remaining, created_at
		FROM budget_decision_log
		WHERE agent_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list budget decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.BudgetDecision
	for rows.Next() {
		var (
			d      models.BudgetDecision
			reason sql.NullString
		)
		if scanErr := rows.Scan(&d.ID, &d.AgentID, &d.OperationType, &d.Decision,
			&reason, &d.DailyRemaining, &d.MonthlyRemaining, &d.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		d.Reason = scanNullString(reason)
		out = append(out, &d)
	}
	return out, rows.Err()
}
