package runtime

import (
	"context"
	"fmt"

	"github.com/venturelane/vceo/internal/models"
	"github.com/venturelane/vceo/internal/store"
)

// sweepOverdue runs on idle cycles. It finds pending messages for this
// agent whose response deadline has elapsed, claims each through the
// same conditional update as normal work, and routes it to the overdue
// handler. Returns how many overdue messages were handled.
//
// Claims that lose to a concurrent runtime are skipped silently; the
// other instance owns the message now.
func (l *Loop) sweepOverdue(ctx context.Context) (int, error) {
	if l.dispatcher.registry.overdue == nil {
		return 0, nil
	}

	msgs, err := store.OverdueMessages(l.db, l.cfg.AgentID, l.now())
	if err != nil {
		return 0, fmt.Errorf("query overdue: %w", err)
	}

	handled := 0
	for _, msg := range msgs {
		claimed, err := store.ClaimMessage(l.db, msg.ID)
		if err != nil {
			return handled, fmt.Errorf("claim overdue %s: %w", msg.ID, err)
		}
		if !claimed {
			continue
		}

		store.RecordRuntimeEvent(l.db, models.EventKindMessageOverdue, l.cfg.AgentID, msg.ID,
			fmt.Sprintf("deadline %s elapsed", msg.ResponseDeadline.UTC().Format("2006-01-02T15:04:05Z")))
		l.logger.Warn("message overdue", "message", msg.ID, "type", msg.Type)

		if _, err := l.dispatcher.DispatchOverdue(ctx, msg); err != nil {
			return handled, fmt.Errorf("dispatch overdue %s: %w", msg.ID, err)
		}
		handled++
	}
	return handled, nil
}
