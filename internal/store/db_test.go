package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDBWithPath_Memory(t *testing.T) {
	db := testDB(t)

	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestInitDBWithPath_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vceo.db")

	db, err := InitDBWithPath(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestMigrations_SchemaVersion(t *testing.T) {
	db := testDB(t)

	current, latest, err := SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, latest, current, "fresh database is fully migrated")
	assert.Positive(t, latest)
}

func TestMigrations_TablesExist(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{
		"messages", "budgets", "budget_decision_log", "predictions",
		"agent_memory", "agent_capabilities", "runtime_events",
	} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestNormalizeSQLiteDSN(t *testing.T) {
	assert.Contains(t, normalizeSQLiteDSN(":memory:"), "memory")
	assert.Contains(t, normalizeSQLiteDSN("/tmp/x.db"), "/tmp/x.db")
}
