package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/venturelane/vceo/internal/capability"
	"github.com/venturelane/vceo/internal/models"
)

// BaselineRegistry returns a registry with the stock handlers every
// venture runtime starts from. Callers layer venture-specific handlers
// on top with Register. Typed handlers run behind the capability gate;
// a nil gate denies any message that names a required capability.
//
// Stock behavior:
//   - task_delegation, status_report, task_completion: acknowledged and
//     completed with a receipt summary; a venture_id in the body also
//     produces a memory update so context survives across cycles.
//   - query: completed with a response message emitted back to the
//     sender under the same correlation id.
//   - escalation: completed with a receipt; escalations exist to be
//     seen, not re-routed.
//   - overdue: completed with an escalation emitted to the original
//     sender, carrying the unanswered message's id. Not gated: overdue
//     handling is the runtime's own bookkeeping, not an agent action.
func BaselineRegistry(gate *capability.Gate) *Registry {
	r := NewRegistry()
	r.Register(models.MessageTaskDelegation, authorized(gate, HandlerFunc(acknowledge)))
	r.Register(models.MessageTaskCompletion, authorized(gate, HandlerFunc(acknowledge)))
	r.Register(models.MessageStatusReport, authorized(gate, HandlerFunc(acknowledge)))
	r.Register(models.MessageEscalation, authorized(gate, HandlerFunc(acknowledge)))
	r.Register(models.MessageQuery, authorized(gate, HandlerFunc(answerQuery)))
	r.RegisterOverdue(HandlerFunc(escalateOverdue))
	return r
}

// authorized wraps a handler with the capability gate. A message whose
// body names a required_capability only reaches the handler when the
// receiving agent holds that capability (or the wildcard grant); a
// denial fails the message with the structured denied error.
func authorized(gate *capability.Gate, next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
		if cap := requiredCapability(msg.Body); cap != "" {
			if gate == nil {
				return nil, &capability.DeniedError{AgentID: msg.ToAgent, Capability: cap}
			}
			if err := gate.Require(msg.ToAgent, cap); err != nil {
				return nil, err
			}
		}
		return next.Handle(ctx, msg)
	})
}

type receipt struct {
	Acknowledged bool      `json:"acknowledged"`
	MessageType  string    `json:"message_type"`
	At           time.Time `json:"at"`
}

func acknowledge(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
	summary, err := json.Marshal(receipt{
		Acknowledged: true,
		MessageType:  string(msg.Type),
		At:           time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	res := &models.HandlerResult{Status: models.MessageCompleted, Summary: summary}

	// Carry delegation context into venture-scoped memory when the
	// sender identified the venture.
	if venture := ventureFromBody(msg.Body); venture != "" {
		res.Memory = &models.MemoryUpdate{
			VentureID:  venture,
			MemoryType: "last_" + string(msg.Type),
			Content:    bodyOrReceipt(msg.Body, summary),
		}
	}
	return res, nil
}

func answerQuery(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
	summary, err := json.Marshal(receipt{
		Acknowledged: true,
		MessageType:  string(msg.Type),
		At:           time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return &models.HandlerResult{
		Status:  models.MessageCompleted,
		Summary: summary,
		Outbound: []models.OutboundMessage{{
			Type:          models.MessageResponse,
			ToAgent:       msg.FromAgent,
			Subject:       "Re: " + msg.Subject,
			Body:          msg.Body,
			Priority:      msg.Priority,
			CorrelationID: msg.CorrelationID,
		}},
	}, nil
}

func escalateOverdue(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
	body, err := json.Marshal(map[string]string{
		"overdue_message_id": msg.ID,
		"original_type":      string(msg.Type),
		"original_subject":   msg.Subject,
	})
	if err != nil {
		return nil, err
	}
	summary, err := json.Marshal(receipt{
		Acknowledged: true,
		MessageType:  string(msg.Type),
		At:           time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return &models.HandlerResult{
		Status:  models.MessageCompleted,
		Summary: summary,
		Outbound: []models.OutboundMessage{{
			Type:          models.MessageEscalation,
			ToAgent:       msg.FromAgent,
			Subject:       "Overdue: " + msg.Subject,
			Body:          body,
			Priority:      models.PriorityHigh,
			CorrelationID: msg.CorrelationID,
		}},
	}, nil
}

func requiredCapability(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}
	var fields struct {
		RequiredCapability string `json:"required_capability"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	return fields.RequiredCapability
}

func ventureFromBody(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}
	var probe struct {
		VentureID string `json:"venture_id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.VentureID
}

func bodyOrReceipt(body json.RawMessage, fallback json.RawMessage) json.RawMessage {
	if len(body) > 0 {
		return body
	}
	return fallback
}
