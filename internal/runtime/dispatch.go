// Package runtime implements the per-agent message-processing loop:
// admission check, claim, dispatch, and the supervisor sweep for
// overdue messages.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/venturelane/vceo/internal/models"
	"github.com/venturelane/vceo/internal/store"
)

// Handler processes one claimed message and reports a structured result.
// Returning an error (or panicking) is equivalent to returning a failed
// result with the error text.
type Handler interface {
	Handle(ctx context.Context, msg *models.Message) (*models.HandlerResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *models.Message) (*models.HandlerResult, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
	return f(ctx, msg)
}

// Registry maps message types to handlers, plus one dedicated slot for
// the overdue handler used by the supervisor sweep. The registry is
// fixed before the loop starts; it is not safe for concurrent mutation.
type Registry struct {
	handlers map[models.MessageType]Handler
	overdue  Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.MessageType]Handler)}
}

// Register binds a handler to a message type, replacing any previous
// binding.
func (r *Registry) Register(t models.MessageType, h Handler) {
	r.handlers[t] = h
}

// RegisterOverdue binds the handler the supervisor routes overdue
// messages to.
func (r *Registry) RegisterOverdue(h Handler) {
	r.overdue = h
}

// handlerFor returns the handler for a type, or nil.
func (r *Registry) handlerFor(t models.MessageType) Handler {
	return r.handlers[t]
}

// Dispatcher routes one claimed message to its handler and performs the
// side effects the result requests.
type Dispatcher struct {
	db       *sql.DB
	registry *Registry
	agentID  string
	logger   *slog.Logger
}

// NewDispatcher builds a Dispatcher for one agent.
func NewDispatcher(db *sql.DB, registry *Registry, agentID string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{db: db, registry: registry, agentID: agentID, logger: logger}
}

// Dispatch processes a message that this runtime has already claimed
// (status 'processing'). It always drives the message to a terminal
// state; the returned error reports store failures only, not handler
// failures.
//
// On completed results: the message is marked completed with the result
// summary, each outbound message is enqueued as a new pending message
// (with a fresh correlation id when the handler supplied none), and the
// memory update, if present, is persisted under its venture. On failed
// results (including handler errors and panics) the message is marked
// failed and no side effects run.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
	handler := d.registry.handlerFor(msg.Type)
	if handler == nil {
		return d.fail(msg, fmt.Sprintf("no handler registered for message type %q", msg.Type))
	}
	return d.run(ctx, handler, msg)
}

// DispatchOverdue routes a claimed overdue message to the registered
// overdue handler.
func (d *Dispatcher) DispatchOverdue(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
	if d.registry.overdue == nil {
		return d.fail(msg, "message deadline elapsed and no overdue handler is registered")
	}
	return d.run(ctx, d.registry.overdue, msg)
}

func (d *Dispatcher) run(ctx context.Context, handler Handler, msg *models.Message) (*models.HandlerResult, error) {
	res, err := safeHandle(ctx, handler, msg)
	if err != nil {
		return d.fail(msg, err.Error())
	}
	if res == nil {
		return d.fail(msg, "handler returned no result")
	}
	if res.Status != models.MessageCompleted {
		return d.fail(msg, res.Error)
	}

	if err := store.CompleteMessage(d.db, msg.ID, res.Summary); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	store.RecordRuntimeEvent(d.db, models.EventKindMessageCompleted, d.agentID, msg.ID, string(msg.Type))

	d.enqueueOutbound(msg, res.Outbound)
	d.persistMemory(res.Memory)

	return res, nil
}

// enqueueOutbound inserts each follow-up message as a new pending work
// item. An individual insert failure is logged and the rest still go
// out; the original message is already terminal at this point.
func (d *Dispatcher) enqueueOutbound(parent *models.Message, outbound []models.OutboundMessage) {
	for _, o := range outbound {
		corr := o.CorrelationID
		if corr == "" {
			corr = uuid.NewString()
		}
		_, err := store.InsertMessage(d.db, store.NewMessage{
			Type:             o.Type,
			FromAgent:        d.agentID,
			ToAgent:          o.ToAgent,
			Subject:          o.Subject,
			Body:             o.Body,
			Priority:         o.Priority,
			CorrelationID:    corr,
			ResponseDeadline: o.Deadline,
		})
		if err != nil {
			d.logger.Warn("outbound message enqueue failed",
				"parent", parent.ID, "to", o.ToAgent, "type", o.Type, "error", err.Error())
			continue
		}
		store.RecordRuntimeEvent(d.db, models.EventKindMessageSent, d.agentID, parent.ID,
			fmt.Sprintf("outbound %s to %s", o.Type, o.ToAgent))
	}
}

// persistMemory saves the handler-requested memory update. Memory writes
// are best-effort from the dispatcher's perspective: a failure (missing
// venture id included) is logged, not propagated.
func (d *Dispatcher) persistMemory(u *models.MemoryUpdate) {
	if u == nil {
		return
	}
	rec, err := store.SaveMemory(d.db, *u, d.agentID)
	if err != nil {
		d.logger.Warn("memory update failed",
			"venture", u.VentureID, "type", u.MemoryType, "error", err.Error())
		return
	}
	store.RecordRuntimeEvent(d.db, models.EventKindMemorySaved, d.agentID, "",
		fmt.Sprintf("%s v%d", rec.MemoryType, rec.Version))
}

func (d *Dispatcher) fail(msg *models.Message, errText string) (*models.HandlerResult, error) {
	if errText == "" {
		errText = "handler reported failure"
	}
	if err := store.FailMessage(d.db, msg.ID, errText); err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}
	store.RecordRuntimeEvent(d.db, models.EventKindMessageFailed, d.agentID, msg.ID, errText)
	return &models.HandlerResult{Status: models.MessageFailed, Error: errText}, nil
}

// safeHandle invokes the handler, converting a panic into an error so a
// misbehaving handler fails its message instead of killing the runtime.
func safeHandle(ctx context.Context, h Handler, msg *models.Message) (res *models.HandlerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, msg)
}
