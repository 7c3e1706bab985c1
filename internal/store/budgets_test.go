package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturelane/vceo/internal/models"
)

func TestGetBudget_MissingIsNil(t *testing.T) {
	db := testDB(t)

	b, err := GetBudget(db, "unbudgeted")
	require.NoError(t, err)
	assert.Nil(t, b, "missing budget means unlimited, not an error")
}

func TestSetBudget_UpsertPreservesConsumption(t *testing.T) {
	db := testDB(t)

	require.NoError(t, SetBudget(db, models.Budget{
		AgentID: "agent1", DailyLimit: 100, MonthlyLimit: 1000,
	}))
	require.NoError(t, AddConsumption(db, "agent1", 30))

	// Raising limits must not touch the consumption counters.
	require.NoError(t, SetBudget(db, models.Budget{
		AgentID: "agent1", DailyLimit: 200, MonthlyLimit: 2000,
	}))

	b, err := GetBudget(db, "agent1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 200.0, b.DailyLimit)
	assert.Equal(t, 30.0, b.DailyConsumed)
	assert.Equal(t, 30.0, b.MonthlyConsumed)
	assert.Equal(t, 170.0, b.DailyRemaining())
	assert.Equal(t, 1970.0, b.MonthlyRemaining())
}

func TestSetBudget_DefaultThresholds(t *testing.T) {
	db := testDB(t)

	require.NoError(t, SetBudget(db, models.Budget{
		AgentID: "agent1", DailyLimit: 100, MonthlyLimit: 1000,
	}))

	b, err := GetBudget(db, "agent1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 80.0, b.WarningThreshold)
	assert.Equal(t, 95.0, b.CriticalThreshold)
}

func TestSetBudget_Validation(t *testing.T) {
	db := testDB(t)

	require.Error(t, SetBudget(db, models.Budget{DailyLimit: 100}))
	require.Error(t, SetBudget(db, models.Budget{AgentID: "a", DailyLimit: -1}))
}

func TestAddConsumption_NoBudgetIsNoop(t *testing.T) {
	db := testDB(t)

	require.NoError(t, AddConsumption(db, "unbudgeted", 5))
	require.Error(t, AddConsumption(db, "unbudgeted", -5))
}

func TestResetDailyConsumption(t *testing.T) {
	db := testDB(t)

	require.NoError(t, SetBudget(db, models.Budget{
		AgentID: "agent1", DailyLimit: 100, MonthlyLimit: 1000,
	}))
	require.NoError(t, AddConsumption(db, "agent1", 40))

	require.NoError(t, ResetDailyConsumption(db))

	b, err := GetBudget(db, "agent1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 0.0, b.DailyConsumed)
	assert.Equal(t, 40.0, b.MonthlyConsumed, "monthly counter survives the daily rollover")
}

func TestBudgetDecisionLog(t *testing.T) {
	db := testDB(t)

	require.NoError(t, InsertBudgetDecision(db, models.BudgetDecision{
		AgentID: "agent1", OperationType: "message_processing",
		Decision: models.DecisionAllowed, DailyRemaining: 70, MonthlyRemaining: 900,
	}))
	require.NoError(t, InsertBudgetDecision(db, models.BudgetDecision{
		AgentID: "agent1", OperationType: "message_processing",
		Decision: models.DecisionBlocked, Reason: "daily_limit_exceeded",
		DailyRemaining: 50, MonthlyRemaining: 900,
	}))

	decisions, err := ListBudgetDecisions(db, "agent1", 10)
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	// Newest first.
	assert.Equal(t, models.DecisionBlocked, decisions[0].Decision)
	assert.Equal(t, "daily_limit_exceeded", decisions[0].Reason)
	assert.Equal(t, 50.0, decisions[0].DailyRemaining)
	assert.Equal(t, models.DecisionAllowed, decisions[1].Decision)
	assert.Empty(t, decisions[1].Reason)
}

func TestInsertBudgetDecision_RejectsUnknownVerdict(t *testing.T) {
	db := testDB(t)

	err := InsertBudgetDecision(db, models.BudgetDecision{
		AgentID: "agent1", OperationType: "message_processing", Decision: "MAYBE",
	})
	require.Error(t, err)
}
