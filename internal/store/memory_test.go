package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturelane/vceo/internal/models"
)

func TestSaveMemory_RequiresVenture(t *testing.T) {
	db := testDB(t)

	_, err := SaveMemory(db, models.MemoryUpdate{
		MemoryType: "venture_state",
		Content:    json.RawMessage(`{}`),
	}, "agent1")
	assert.ErrorIs(t, err, ErrVentureRequired)
}

func TestSaveMemory_Validation(t *testing.T) {
	db := testDB(t)

	_, err := SaveMemory(db, models.MemoryUpdate{
		VentureID: "v1", MemoryType: "venture_state", Content: json.RawMessage(`{}`),
	}, "")
	require.Error(t, err, "agent id is required")

	_, err = SaveMemory(db, models.MemoryUpdate{
		VentureID: "v1", Content: json.RawMessage(`{}`),
	}, "agent1")
	require.Error(t, err, "memory type is required")

	_, err = SaveMemory(db, models.MemoryUpdate{
		VentureID: "v1", MemoryType: "venture_state", Content: json.RawMessage(`{broken`),
	}, "agent1")
	require.Error(t, err, "content must be valid JSON")
}

func TestSaveMemory_VersionsAppend(t *testing.T) {
	db := testDB(t)

	update := func(content string) *models.MemoryRecord {
		rec, err := SaveMemory(db, models.MemoryUpdate{
			VentureID:  "v1",
			MemoryType: "venture_state",
			Content:    json.RawMessage(content),
		}, "agent1")
		require.NoError(t, err)
		return rec
	}

	v1 := update(`{"phase":"ideation"}`)
	v2 := update(`{"phase":"validation"}`)

	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, v2.Version)
	assert.True(t, v2.IsCurrent)

	history, err := MemoryHistory(db, "agent1", "v1", "venture_state")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Version)
	assert.False(t, history[0].IsCurrent, "prior version superseded, not deleted")
	assert.JSONEq(t, `{"phase":"ideation"}`, string(history[0].Content))
	assert.True(t, history[1].IsCurrent)
}

func TestCurrentMemory_PartitionedByVenture(t *testing.T) {
	db := testDB(t)

	save := func(venture, memType, content string) {
		_, err := SaveMemory(db, models.MemoryUpdate{
			VentureID:  venture,
			MemoryType: memType,
			Content:    json.RawMessage(content),
		}, "agent1")
		require.NoError(t, err)
	}

	save("v1", "venture_state", `{"phase":"growth"}`)
	save("v1", "key_metrics", `{"mrr":9000}`)
	save("v2", "venture_state", `{"phase":"ideation"}`)

	current, err := CurrentMemory(db, "agent1", "v1")
	require.NoError(t, err)
	require.Len(t, current, 2)
	for _, rec := range current {
		assert.Equal(t, "v1", rec.VentureID)
		assert.True(t, rec.IsCurrent)
	}

	other, err := CurrentMemory(db, "agent1", "v2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.JSONEq(t, `{"phase":"ideation"}`, string(other[0].Content))

	_, err = CurrentMemory(db, "agent1", "")
	assert.ErrorIs(t, err, ErrVentureRequired)
}

func TestMemoryVersions_IndependentPerType(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 3; i++ {
		_, err := SaveMemory(db, models.MemoryUpdate{
			VentureID: "v1", MemoryType: "venture_state", Content: json.RawMessage(`{}`),
		}, "agent1")
		require.NoError(t, err)
	}

	rec, err := SaveMemory(db, models.MemoryUpdate{
		VentureID: "v1", MemoryType: "key_metrics", Content: json.RawMessage(`{}`),
	}, "agent1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version, "version counters are per (agent, venture, type)")
}
