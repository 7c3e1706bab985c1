package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/venturelane/vceo/internal/budget"
	"github.com/venturelane/vceo/internal/models"
	"github.com/venturelane/vceo/internal/store"
)

// OpMessageProcessing is the operation type the loop's admission check
// runs under.
const OpMessageProcessing = "message_processing"

// ModeProduction is the execution mode that forbids disabling the truth
// layer.
const ModeProduction = "production"

// CycleKind classifies the outcome of one loop cycle. The loop switches
// on the kind to decide whether to continue, never on error identity.
type CycleKind string

// Cycle outcome kinds.
const (
	// CycleProcessed: a message was claimed and driven to a terminal state.
	CycleProcessed CycleKind = "processed"
	// CycleIdle: nothing claimable; the supervisor sweep ran.
	CycleIdle CycleKind = "idle"
	// CycleBudgetExhausted: admission denied. Fatal to the run.
	CycleBudgetExhausted CycleKind = "budget_exhausted"
	// CycleTransientError: a store or dispatch error; logged, loop continues.
	CycleTransientError CycleKind = "transient_error"
)

// CycleOutcome reports what one cycle did.
type CycleOutcome struct {
	Kind      CycleKind
	MessageID string
	// MessageFailed is set when the processed message ended in 'failed'.
	MessageFailed bool
	Err           error
}

// StopReason explains why Run returned.
type StopReason string

// Stop reasons.
const (
	StopMaxIterations   StopReason = "max_iterations"
	StopBudgetExhausted StopReason = "budget_exhausted"
	StopCircuitOpen     StopReason = "circuit_open"
	StopCanceled        StopReason = "canceled"
)

// Config is the runtime loop configuration surface. The zero value of
// every field besides AgentID is usable: budget enforcement and the
// truth layer are on unless explicitly disabled.
type Config struct {
	AgentID       string
	MaxIterations int           // default 100
	PollInterval  time.Duration // default 5s
	DisableBudget bool
	// DisableTruthLayer is rejected in production mode.
	DisableTruthLayer bool
	Mode              string
	// MessageCost is the estimated cost charged per processed message.
	MessageCost float64
	// MaxConsecutiveFailures opens the circuit breaker. Default 5.
	MaxConsecutiveFailures int
}

// ErrTruthLayerRequired is returned when production mode is configured
// with the truth layer disabled.
var ErrTruthLayerRequired = errors.New("truth layer cannot be disabled in production mode")

// normalize applies defaults and validates the configuration.
func (c *Config) normalize() error {
	if c.AgentID == "" {
		return errors.New("agent id is required")
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 100
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MessageCost <= 0 {
		c.MessageCost = 1
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 5
	}
	if c.Mode == ModeProduction && c.DisableTruthLayer {
		return ErrTruthLayerRequired
	}
	return nil
}

// RunSummary is the final report of one Run invocation.
type RunSummary struct {
	AgentID    string     `json:"agent_id"`
	Iterations int        `json:"iterations"`
	Processed  int        `json:"processed"`
	Failed     int        `json:"failed"`
	Overdue    int        `json:"overdue_handled"`
	StopReason StopReason `json:"stop_reason"`
}

// Loop is one agent's runtime instance. Instances for different agents
// may share the same backing store; the claim protocol keeps them from
// processing the same message.
type Loop struct {
	cfg        Config
	db         *sql.DB
	admission  *budget.Controller
	dispatcher *Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// New builds a Loop. cfg is normalized and validated; a production-mode
// config with the truth layer disabled is rejected here, before any
// cycle runs.
func New(db *sql.DB, cfg Config, registry *Registry, admission *budget.Controller, logger *slog.Logger) (*Loop, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:        cfg,
		db:         db,
		admission:  admission,
		dispatcher: NewDispatcher(db, registry, cfg.AgentID, logger),
		logger:     logger.With("agent", cfg.AgentID),
		now:        time.Now,
	}, nil
}

// Run drives claim→dispatch cycles until a fatal outcome, cancellation,
// or the iteration cap. The two fatal kinds are budget exhaustion and
// the consecutive-failure circuit breaker; every other error is logged
// and the next cycle proceeds.
func (l *Loop) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{AgentID: l.cfg.AgentID, StopReason: StopMaxIterations}
	store.RecordRuntimeEvent(l.db, models.EventKindLoopStarted, l.cfg.AgentID, "", "")
	defer func() {
		store.RecordRuntimeEvent(l.db, models.EventKindLoopStopped, l.cfg.AgentID, "",
			fmt.Sprintf("%s after %d iterations", summary.StopReason, summary.Iterations))
		l.logger.Info("runtime loop stopped",
			"reason", summary.StopReason,
			"iterations", summary.Iterations,
			"processed", summary.Processed,
			"failed", summary.Failed)
	}()

	consecutiveFailures := 0

	for summary.Iterations < l.cfg.MaxIterations {
		// Cooperative stop, checked once per cycle boundary. There is no
		// preemption mid-dispatch.
		select {
		case <-ctx.Done():
			summary.StopReason = StopCanceled
			return summary, nil
		default:
		}

		outcome := l.cycle(ctx, summary)
		summary.Iterations++

		switch outcome.Kind {
		case CycleBudgetExhausted:
			summary.StopReason = StopBudgetExhausted
			return summary, nil

		case CycleTransientError:
			consecutiveFailures++
			l.logger.Warn("cycle error",
				"iteration", summary.Iterations,
				"consecutive_failures", consecutiveFailures,
				"error", outcome.Err.Error())
			if consecutiveFailures >= l.cfg.MaxConsecutiveFailures {
				summary.StopReason = StopCircuitOpen
				return summary, nil
			}
			if !l.sleep(ctx) {
				summary.StopReason = StopCanceled
				return summary, nil
			}

		case CycleProcessed:
			consecutiveFailures = 0
			summary.Processed++
			if outcome.MessageFailed {
				summary.Failed++
			}

		case CycleIdle:
			consecutiveFailures = 0
			if !l.sleep(ctx) {
				summary.StopReason = StopCanceled
				return summary, nil
			}
		}
	}

	return summary, nil
}

// cycle performs one admission→claim→dispatch pass. Failed items are
// not requeued here: a handler failure leaves the message terminal, and
// transient claim errors simply surface the message again next cycle.
func (l *Loop) cycle(ctx context.Context, summary *RunSummary) CycleOutcome {
	if !l.cfg.DisableBudget && l.admission != nil {
		d := l.admission.Check(ctx, l.cfg.AgentID, OpMessageProcessing, l.cfg.MessageCost)
		if !d.Allowed {
			l.logger.Warn("admission denied, stopping",
				"reason", d.Reason,
				"required", d.Required,
				"daily_remaining", d.DailyRemaining)
			return CycleOutcome{Kind: CycleBudgetExhausted}
		}
	}

	msg, err := store.ClaimNextMessage(l.db, l.cfg.AgentID)
	if err != nil {
		return CycleOutcome{Kind: CycleTransientError, Err: fmt.Errorf("claim: %w", err)}
	}
	if msg == nil {
		handled, err := l.sweepOverdue(ctx)
		if err != nil {
			return CycleOutcome{Kind: CycleTransientError, Err: fmt.Errorf("supervisor sweep: %w", err)}
		}
		summary.Overdue += handled
		return CycleOutcome{Kind: CycleIdle}
	}

	store.RecordRuntimeEvent(l.db, models.EventKindMessageClaimed, l.cfg.AgentID, msg.ID, string(msg.Type))
	l.logger.Info("message claimed",
		"message", msg.ID, "type", msg.Type, "priority", msg.Priority, "from", msg.FromAgent)

	res, err := l.dispatcher.Dispatch(ctx, msg)
	if err != nil {
		// Store failure while persisting the terminal state. The message
		// stays 'processing'; operator intervention or a later sweep
		// resolves it. Transient from the loop's point of view.
		return CycleOutcome{Kind: CycleTransientError, MessageID: msg.ID, Err: err}
	}

	if l.admission != nil {
		l.admission.RecordConsumption(ctx, l.cfg.AgentID, l.cfg.MessageCost)
	}

	return CycleOutcome{
		Kind:          CycleProcessed,
		MessageID:     msg.ID,
		MessageFailed: res.Status == models.MessageFailed,
	}
}

// sleep waits one poll interval, returning false if the context was
// canceled first.
func (l *Loop) sleep(ctx context.Context) bool {
	t := time.NewTimer(l.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
