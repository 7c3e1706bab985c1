// Package budget implements admission control against per-agent
// resource ledgers. The controller reads the ledger, never writes it;
// consumption is recorded separately after an operation completes.
package budget

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/venturelane/vceo/internal/models"
	"github.com/venturelane/vceo/internal/store"
)

// Denial reasons recorded in the decision log.
const (
	ReasonDailyLimitExceeded   = "daily_limit_exceeded"
	ReasonMonthlyLimitExceeded = "monthly_limit_exceeded"
)

// Thresholds configures the consumption percentages at which the
// controller emits warnings. Passed in at construction so callers can
// tune alerting without touching package state.
type Thresholds struct {
	WarnPercent     float64
	CriticalPercent float64
}

// DefaultThresholds returns the standard 80/95 warning levels.
func DefaultThresholds() Thresholds {
	return Thresholds{WarnPercent: 80, CriticalPercent: 95}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed          bool    `json:"allowed"`
	Reason           string  `json:"reason,omitempty"`
	Required         float64 `json:"required"`
	DailyRemaining   float64 `json:"daily_remaining"`
	MonthlyRemaining float64 `json:"monthly_remaining"`
	// Unlimited is set when no budget row exists for the agent.
	Unlimited bool `json:"unlimited,omitempty"`
}

// Controller gates operations against agent budgets.
type Controller struct {
	db         *sql.DB
	thresholds Thresholds
	audit      *auditSink
	logger     *slog.Logger
}

// NewController builds a Controller. A zero Thresholds falls back to
// the defaults.
func NewController(db *sql.DB, t Thresholds, logger *slog.Logger) *Controller {
	if t.WarnPercent <= 0 {
		t.WarnPercent = DefaultThresholds().WarnPercent
	}
	if t.CriticalPercent <= 0 {
		t.CriticalPercent = DefaultThresholds().CriticalPercent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		db:         db,
		thresholds: t,
		audit:      &auditSink{db: db, logger: logger},
		logger:     logger,
	}
}

// Check decides whether an operation of estimatedCost may proceed.
//
// No budget row means unlimited: absent configuration never halts
// operations. A budget lookup error is
// treated the same way (logged, allowed) since it is a configuration or
// infrastructure problem, not an exhausted budget.
func (c *Controller) Check(ctx context.Context, agentID, operationType string, estimatedCost float64) Decision {
	b, err := store.GetBudget(c.db, agentID)
	if err != nil {
		c.logger.Warn("budget lookup failed, failing open",
			"agent", agentID, "error", err.Error())
		return Decision{Allowed: true, Unlimited: true, Required: estimatedCost}
	}
	if b == nil {
		d := Decision{Allowed: true, Unlimited: true, Required: estimatedCost}
		c.audit.record(agentID, operationType, d)
		return d
	}

	d := Decision{
		Required:         estimatedCost,
		DailyRemaining:   b.DailyRemaining(),
		MonthlyRemaining: b.MonthlyRemaining(),
	}

	switch {
	case b.DailyRemaining() < estimatedCost:
		d.Reason = ReasonDailyLimitExceeded
	case b.MonthlyRemaining() < estimatedCost:
		d.Reason = ReasonMonthlyLimitExceeded
	default:
		d.Allowed = true
	}

	if d.Allowed {
		c.warnOnThresholds(b)
	} else {
		c.logger.Warn("operation blocked by budget",
			"agent", agentID, "operation", operationType,
			"reason", d.Reason, "required", estimatedCost,
			"daily_remaining", d.DailyRemaining,
			"monthly_remaining", d.MonthlyRemaining)
	}

	c.audit.record(agentID, operationType, d)
	return d
}

// warnOnThresholds emits a warning when daily or monthly consumption
// crosses the configured percentages. Per-budget thresholds override
// the controller-level ones when set.
func (c *Controller) warnOnThresholds(b *models.Budget) {
	warn, critical := c.thresholds.WarnPercent, c.thresholds.CriticalPercent
	if b.WarningThreshold > 0 {
		warn = b.WarningThreshold
	}
	if b.CriticalThreshold > 0 {
		critical = b.CriticalThreshold
	}

	check := func(window string, consumed, limit float64) {
		if limit <= 0 {
			return
		}
		pct := consumed / limit * 100
		switch {
		case pct >= critical:
			c.logger.Warn("budget critical",
				"agent", b.AgentID, "window", window, "percent", pct)
		case pct >= warn:
			c.logger.Warn("budget warning",
				"agent", b.AgentID, "window", window, "percent", pct)
		}
	}
	check("daily", b.DailyConsumed, b.DailyLimit)
	check("monthly", b.MonthlyConsumed, b.MonthlyLimit)
}

// RecordConsumption updates the ledger with the actual cost of a
// finished operation. Failures are swallowed after logging: accounting
// errors must not cascade into operational failures.
func (c *Controller) RecordConsumption(ctx context.Context, agentID string, actualCost float64) {
	if actualCost <= 0 {
		return
	}
	if err := store.AddConsumption(c.db, agentID, actualCost); err != nil {
		c.logger.Warn("consumption recording failed",
			"agent", agentID, "cost", actualCost, "error", err.Error())
	}
}

// auditSink writes decision-log rows with its own error boundary.
// A failed audit write is logged and swallowed; it must never block
// the admission decision it describes.
type auditSink struct {
	db     *sql.DB
	logger *slog.Logger
}

func (s *auditSink) record(agentID, operationType string, d Decision) {
	decision := models.DecisionBlocked
	if d.Allowed {
		decision = models.DecisionAllowed
	}
	err := store.InsertBudgetDecision(s.db, models.BudgetDecision{
		AgentID:          agentID,
		OperationType:    operationType,
		Decision:         decision,
		Reason:           d.Reason,
		DailyRemaining:   d.DailyRemaining,
		MonthlyRemaining: d.MonthlyRemaining,
	})
	if err != nil {
		s.logger.Warn("budget decision log write failed",
			"agent", agentID, "decision", decision, "error", err.Error())
	}
}
