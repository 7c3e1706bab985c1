package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMessageCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := NewMessageCmd()
	require.Equal(t, "message", cmd.Use)

	for _, name := range []string{"send", "list", "show"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, sub.Name())
	}
}

func TestNewBudgetCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := NewBudgetCmd()
	for _, name := range []string{"set", "show", "check", "decisions"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, sub.Name())
	}
}

func TestNewPredictCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := NewPredictCmd()
	for _, name := range []string{"log", "resolve", "list", "calibration", "validate"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, sub.Name())
	}
}

func TestNewMemoryCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := NewMemoryCmd()
	for _, name := range []string{"save", "list", "history"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, sub.Name())
	}
}

func TestNewCapabilityCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := NewCapabilityCmd()
	for _, name := range []string{"grant", "revoke", "list", "check"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, sub.Name())
	}
}

func TestNewDBCmd_HasMigrateStatus(t *testing.T) {
	cmd := NewDBCmd()
	sub, _, err := cmd.Find([]string{"migrate-status"})
	require.NoError(t, err)
	require.Equal(t, "migrate-status", sub.Name())
}

func TestMessageSendCmd_ValidationBeforeDB(t *testing.T) {
	cmd := newMessageSendCmd()

	// Missing --type.
	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)

	// Missing --from / --to.
	require.NoError(t, cmd.Flags().Set("type", "query"))
	err = cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)

	// Bad priority.
	require.NoError(t, cmd.Flags().Set("from", "a"))
	require.NoError(t, cmd.Flags().Set("to", "b"))
	require.NoError(t, cmd.Flags().Set("priority", "urgent"))
	err = cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)

	// Bad deadline.
	require.NoError(t, cmd.Flags().Set("priority", "high"))
	require.NoError(t, cmd.Flags().Set("deadline", "tomorrow"))
	err = cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)
}

func TestRunCmd_RequiresAgent(t *testing.T) {
	cmd := NewRunCmd()
	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)
}

func TestMemorySaveCmd_RejectsInvalidContent(t *testing.T) {
	cmd := newMemorySaveCmd()
	require.NoError(t, cmd.Flags().Set("content", "{broken"))

	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)
}

func TestPredictListCmd_RequiresAgent(t *testing.T) {
	cmd := newPredictListCmd()
	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)
}

func TestPredictValidateCmd_RequiresJSONObject(t *testing.T) {
	cmd := newPredictValidateCmd()
	require.NoError(t, cmd.Flags().Set("hypothesis", "not json"))

	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]int{
		"low": 10, "": 20, "normal": 20, "high": 30, "critical": 40,
	} {
		p, err := parsePriority(in)
		require.NoError(t, err)
		require.Equal(t, want, int(p))
	}

	_, err := parsePriority("urgent")
	require.Error(t, err)
}
