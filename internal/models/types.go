package models

import (
	"encoding/json"
	"time"
)

// ID Strategy:
// - Messages and predictions use string IDs (distributed generation,
//   e.g. "msg_1234567890_a3f9b2c1d4e5")
// - Append-only logs (budget decisions, memory, runtime events) use
//   int64 auto-increment IDs for cheap monotonic ordering.

// MessageType identifies the handler a message is routed to.
type MessageType string

// Core message types understood by every runtime. Ventures may register
// handlers for additional domain-specific types.
const (
	MessageTaskDelegation MessageType = "task_delegation"
	MessageTaskCompletion MessageType = "task_completion"
	MessageStatusReport   MessageType = "status_report"
	MessageEscalation     MessageType = "escalation"
	MessageQuery          MessageType = "query"
	MessageResponse       MessageType = "response"
)

// MessageStatus is the work-item lifecycle state.
type MessageStatus string

// Message status constants.
const (
	MessagePending    MessageStatus = "pending"
	MessageProcessing MessageStatus = "processing"
	MessageCompleted  MessageStatus = "completed"
	MessageFailed     MessageStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageCompleted || s == MessageFailed
}

// Priority orders pending messages for claiming. Gaps allow future
// intermediate levels without renumbering.
type Priority int

// Priority levels, low to critical.
const (
	PriorityLow      Priority = 10
	PriorityNormal   Priority = 20
	PriorityHigh     Priority = 30
	PriorityCritical Priority = 40
)

// Valid reports whether p is one of the defined levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Message is a unit of inter-agent communication (a work item).
// At most one runtime instance holds a message in 'processing' at a
// time; the claim protocol's conditional update enforces this.
type Message struct {
	ID               string          `json:"id"`
	Type             MessageType     `json:"type"`
	FromAgent        string          `json:"from_agent"`
	ToAgent          string          `json:"to_agent"`
	Subject          string          `json:"subject"`
	Body             json.RawMessage `json:"body,omitempty"`
	Priority         Priority        `json:"priority"`
	Status           MessageStatus   `json:"status"`
	CorrelationID    string          `json:"correlation_id,omitempty"`
	ResponseDeadline *time.Time      `json:"response_deadline,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
	Error            string          `json:"error,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Overdue reports whether the message has an elapsed response deadline.
func (m *Message) Overdue(now time.Time) bool {
	return m.ResponseDeadline != nil && m.ResponseDeadline.Before(now)
}

// OutboundMessage is a follow-up message a handler asks the dispatcher
// to enqueue. CorrelationID may be empty; the dispatcher stamps one.
type OutboundMessage struct {
	Type          MessageType     `json:"type"`
	ToAgent       string          `json:"to_agent"`
	Subject       string          `json:"subject"`
	Body          json.RawMessage `json:"body,omitempty"`
	Priority      Priority        `json:"priority,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Deadline      *time.Time      `json:"deadline,omitempty"`
}

// MemoryUpdate is a handler-requested agent memory write. VentureID is
// mandatory: memory is partitioned per venture and writes without one
// are rejected by the store.
type MemoryUpdate struct {
	VentureID  string          `json:"venture_id"`
	MemoryType string          `json:"memory_type"`
	Content    json.RawMessage `json:"content"`
}

// HandlerResult is the structured outcome of dispatching one message.
type HandlerResult struct {
	Status   MessageStatus     `json:"status"` // completed or failed
	Error    string            `json:"error,omitempty"`
	Summary  json.RawMessage   `json:"summary,omitempty"`
	Outbound []OutboundMessage `json:"outbound,omitempty"`
	Memory   *MemoryUpdate     `json:"memory,omitempty"`
}

// Budget is the per-agent resource ledger. Absence of a Budget row for
// an agent means "unlimited": missing configuration must not halt
// operations (fail-open by design).
type Budget struct {
	AgentID           string    `json:"agent_id"`
	VentureID         string    `json:"venture_id,omitempty"`
	DailyLimit        float64   `json:"daily_limit"`
	DailyConsumed     float64   `json:"daily_consumed"`
	MonthlyLimit      float64   `json:"monthly_limit"`
	MonthlyConsumed   float64   `json:"monthly_consumed"`
	WarningThreshold  float64   `json:"warning_threshold"`
	CriticalThreshold float64   `json:"critical_threshold"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DailyRemaining returns the unconsumed daily balance.
func (b *Budget) DailyRemaining() float64 { return b.DailyLimit - b.DailyConsumed }

// MonthlyRemaining returns the unconsumed monthly balance.
func (b *Budget) MonthlyRemaining() float64 { return b.MonthlyLimit - b.MonthlyConsumed }

// Budget decision values recorded in the decision log.
const (
	DecisionAllowed = "ALLOWED"
	DecisionBlocked = "BLOCKED"
)

// BudgetDecision is one immutable admission-control audit record.
type BudgetDecision struct {
	ID               int64     `json:"id"`
	AgentID          string    `json:"agent_id"`
	OperationType    string    `json:"operation_type"`
	Decision         string    `json:"decision"`
	Reason           string    `json:"reason,omitempty"`
	DailyRemaining   float64   `json:"daily_remaining"`
	MonthlyRemaining float64   `json:"monthly_remaining"`
	CreatedAt        time.Time `json:"created_at"`
}

// PredictionStatus is the prediction lifecycle state.
type PredictionStatus string

// Prediction status constants. A prediction resolves exactly once.
const (
	PredictionPending  PredictionStatus = "pending"
	PredictionResolved PredictionStatus = "resolved"
)

// Prediction is a forward-looking claim logged by an agent, resolved
// later against the observed outcome. CalibrationDelta is
// (confidence - actual)^2, computed once at resolution time and never
// recomputed.
type Prediction struct {
	ID               string           `json:"id"`
	AgentID          string           `json:"agent_id"`
	Type             string           `json:"type"`
	Statement        string           `json:"statement"`
	Confidence       float64          `json:"confidence"`
	Timeframe        string           `json:"timeframe"`
	Metadata         json.RawMessage  `json:"metadata,omitempty"`
	Status           PredictionStatus `json:"status"`
	WasCorrect       *bool            `json:"was_correct,omitempty"`
	ActualValue      *float64         `json:"actual_value,omitempty"`
	Evidence         string           `json:"evidence,omitempty"`
	CalibrationDelta *float64         `json:"calibration_delta,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
}

// MemoryRecord is one versioned, append-only agent memory entry,
// partitioned per venture.
type MemoryRecord struct {
	ID         int64           `json:"id"`
	AgentID    string          `json:"agent_id"`
	VentureID  string          `json:"venture_id"`
	MemoryType string          `json:"memory_type"`
	Content    json.RawMessage `json:"content"`
	Version    int             `json:"version"`
	IsCurrent  bool            `json:"is_current"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CapabilityWildcard grants every capability to an agent.
const CapabilityWildcard = "*"

// Capability is one agent authorization row.
type Capability struct {
	AgentID    string    `json:"agent_id"`
	Capability string    `json:"capability"`
	GrantedAt  time.Time `json:"granted_at"`
}
