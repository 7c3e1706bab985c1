package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturelane/vceo/internal/models"
)

func TestInsertRuntimeEvent_RoundTrip(t *testing.T) {
	db := testDB(t)

	id, err := InsertRuntimeEvent(db, models.EventKindMessageClaimed, "agent1", "msg_1", "")
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = InsertRuntimeEvent(db, models.EventKindLoopStopped, "agent1", "", "reason=max_iterations")
	require.NoError(t, err)

	events, err := ListRuntimeEvents(db, "agent1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, models.EventKindLoopStopped, events[0].Kind)
	assert.Equal(t, "reason=max_iterations", events[0].Detail)
	assert.Empty(t, events[0].MessageID)
	assert.Equal(t, models.EventKindMessageClaimed, events[1].Kind)
	assert.Equal(t, "msg_1", events[1].MessageID)
}

func TestInsertRuntimeEvent_Validation(t *testing.T) {
	db := testDB(t)

	_, err := InsertRuntimeEvent(db, "", "agent1", "", "")
	require.Error(t, err)

	_, err = InsertRuntimeEvent(db, models.EventKindLoopStarted, "", "", "")
	require.Error(t, err)
}

func TestRecordRuntimeEvent_SwallowsFailures(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.Close())

	// Must not panic or propagate: audit writes are best-effort.
	RecordRuntimeEvent(db, models.EventKindLoopStarted, "agent1", "", "")
}
