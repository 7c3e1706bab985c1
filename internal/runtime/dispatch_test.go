package runtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturelane/vceo/internal/capability"
	"github.com/venturelane/vceo/internal/models"
	"github.com/venturelane/vceo/internal/store"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// claimTestMessage inserts a message addressed to agent1 and claims it,
// so it arrives at the dispatcher in 'processing' as the loop would
// deliver it.
func claimTestMessage(t *testing.T, db *sql.DB, n store.NewMessage) *models.Message {
	t.Helper()
	if n.Type == "" {
		n.Type = models.MessageTaskDelegation
	}
	if n.FromAgent == "" {
		n.FromAgent = "venture-ceo"
	}
	if n.ToAgent == "" {
		n.ToAgent = "agent1"
	}
	msg, err := store.InsertMessage(db, n)
	require.NoError(t, err)
	claimed, err := store.ClaimMessage(db, msg.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	msg.Status = models.MessageProcessing
	return msg
}

func TestDispatch_CompletedWithSideEffects(t *testing.T) {
	db := testDB(t)

	registry := NewRegistry()
	registry.Register(models.MessageTaskDelegation, HandlerFunc(
		func(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
			return &models.HandlerResult{
				Status:  models.MessageCompleted,
				Summary: json.RawMessage(`{"done":true}`),
				Outbound: []models.OutboundMessage{{
					Type:    models.MessageStatusReport,
					ToAgent: "venture-ceo",
					Subject: "progress",
				}},
				Memory: &models.MemoryUpdate{
					VentureID:  "v1",
					MemoryType: "venture_state",
					Content:    json.RawMessage(`{"phase":"build"}`),
				},
			}, nil
		}))
	d := NewDispatcher(db, registry, "agent1", nil)

	msg := claimTestMessage(t, db, store.NewMessage{Subject: "build the thing"})

	res, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, models.MessageCompleted, res.Status)

	got, err := store.GetMessage(db, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageCompleted, got.Status)
	assert.JSONEq(t, `{"done":true}`, string(got.Result))

	// Outbound enqueued as fresh pending work with a stamped correlation id.
	outbound, err := store.ListMessages(db, store.MessageFilter{ToAgent: "venture-ceo"})
	require.NoError(t, err)
	require.Len(t, outbound, 1)
	assert.Equal(t, models.MessagePending, outbound[0].Status)
	assert.Equal(t, "agent1", outbound[0].FromAgent)
	assert.NotEmpty(t, outbound[0].CorrelationID)

	// Memory persisted under the venture.
	mem, err := store.CurrentMemory(db, "agent1", "v1")
	require.NoError(t, err)
	require.Len(t, mem, 1)
	assert.JSONEq(t, `{"phase":"build"}`, string(mem[0].Content))
}

func TestDispatch_PreservesHandlerCorrelationID(t *testing.T) {
	db := testDB(t)

	registry := NewRegistry()
	registry.Register(models.MessageQuery, HandlerFunc(
		func(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
			return &models.HandlerResult{
				Status: models.MessageCompleted,
				Outbound: []models.OutboundMessage{{
					Type:          models.MessageResponse,
					ToAgent:       msg.FromAgent,
					Subject:       "Re: " + msg.Subject,
					CorrelationID: msg.CorrelationID,
				}},
			}, nil
		}))
	d := NewDispatcher(db, registry, "agent1", nil)

	msg := claimTestMessage(t, db, store.NewMessage{
		Type: models.MessageQuery, Subject: "q", CorrelationID: "corr-123",
	})

	_, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err)

	outbound, err := store.ListMessages(db, store.MessageFilter{ToAgent: "venture-ceo"})
	require.NoError(t, err)
	require.Len(t, outbound, 1)
	assert.Equal(t, "corr-123", outbound[0].CorrelationID)
}

func TestDispatch_FailedResultSkipsSideEffects(t *testing.T) {
	db := testDB(t)

	registry := NewRegistry()
	registry.Register(models.MessageTaskDelegation, HandlerFunc(
		func(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
			return &models.HandlerResult{
				Status: models.MessageFailed,
				Error:  "upstream api returned 503",
				Outbound: []models.OutboundMessage{{
					Type: models.MessageStatusReport, ToAgent: "venture-ceo",
				}},
			}, nil
		}))
	d := NewDispatcher(db, registry, "agent1", nil)

	msg := claimTestMessage(t, db, store.NewMessage{Subject: "doomed"})

	res, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err, "handler failure is not a dispatch error")
	assert.Equal(t, models.MessageFailed, res.Status)

	got, err := store.GetMessage(db, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageFailed, got.Status)
	assert.Equal(t, "upstream api returned 503", got.Error)

	outbound, err := store.ListMessages(db, store.MessageFilter{ToAgent: "venture-ceo"})
	require.NoError(t, err)
	assert.Empty(t, outbound, "failed results perform no side effects")
}

func TestDispatch_HandlerError(t *testing.T) {
	db := testDB(t)

	registry := NewRegistry()
	registry.Register(models.MessageTaskDelegation, HandlerFunc(
		func(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
			return nil, errors.New("connection refused")
		}))
	d := NewDispatcher(db, registry, "agent1", nil)

	msg := claimTestMessage(t, db, store.NewMessage{Subject: "errored"})

	res, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, models.MessageFailed, res.Status)
	assert.Equal(t, "connection refused", res.Error)
}

func TestDispatch_PanicRecovered(t *testing.T) {
	db := testDB(t)

	registry := NewRegistry()
	registry.Register(models.MessageTaskDelegation, HandlerFunc(
		func(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
			panic("nil map write")
		}))
	d := NewDispatcher(db, registry, "agent1", nil)

	msg := claimTestMessage(t, db, store.NewMessage{Subject: "boom"})

	res, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err, "a panicking handler fails its message, not the runtime")
	assert.Equal(t, models.MessageFailed, res.Status)
	assert.Contains(t, res.Error, "handler panicked")

	got, err := store.GetMessage(db, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageFailed, got.Status)
}

func TestDispatch_UnknownTypeFails(t *testing.T) {
	db := testDB(t)

	d := NewDispatcher(db, NewRegistry(), "agent1", nil)
	msg := claimTestMessage(t, db, store.NewMessage{Type: models.MessageQuery, Subject: "q"})

	res, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, models.MessageFailed, res.Status)
	assert.Contains(t, res.Error, "no handler registered")
}

func TestDispatch_NilResultFails(t *testing.T) {
	db := testDB(t)

	registry := NewRegistry()
	registry.Register(models.MessageTaskDelegation, HandlerFunc(
		func(ctx context.Context, msg *models.Message) (*models.HandlerResult, error) {
			return nil, nil
		}))
	d := NewDispatcher(db, registry, "agent1", nil)

	msg := claimTestMessage(t, db, store.NewMessage{Subject: "empty"})

	res, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, models.MessageFailed, res.Status)
}

func TestDispatchOverdue_WithoutHandlerFails(t *testing.T) {
	db := testDB(t)

	d := NewDispatcher(db, NewRegistry(), "agent1", nil)
	msg := claimTestMessage(t, db, store.NewMessage{Subject: "late"})

	res, err := d.DispatchOverdue(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, models.MessageFailed, res.Status)
	assert.Contains(t, res.Error, "no overdue handler")
}

func TestDispatch_CapabilityDeniedFailsMessage(t *testing.T) {
	db := testDB(t)

	body, _ := json.Marshal(map[string]string{"required_capability": "deploy"})
	msg := claimTestMessage(t, db, store.NewMessage{Subject: "restricted", Body: body})

	d := NewDispatcher(db, BaselineRegistry(capability.NewGate(db)), "agent1", nil)
	res, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, models.MessageFailed, res.Status)
	assert.Contains(t, res.Error, "lacks capability deploy")

	stored, err := store.GetMessage(db, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageFailed, stored.Status)
}

func TestDispatch_CapabilityGrantedCompletes(t *testing.T) {
	db := testDB(t)
	require.NoError(t, store.GrantCapability(db, "agent1", "deploy"))

	body, _ := json.Marshal(map[string]string{"required_capability": "deploy"})
	msg := claimTestMessage(t, db, store.NewMessage{Subject: "restricted", Body: body})

	d := NewDispatcher(db, BaselineRegistry(capability.NewGate(db)), "agent1", nil)
	res, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, models.MessageCompleted, res.Status)
}
