// Package capability answers "may this agent perform this action".
// Unlike budgets (which fail open when unconfigured), capability checks
// fail closed: an agent with no grant rows can do nothing. Authorization
// absence and configuration absence are different things.
package capability

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/venturelane/vceo/internal/store"
)

// ErrDenied is returned by Require when the agent lacks the capability.
var ErrDenied = errors.New("capability denied")

// DeniedError carries the agent and capability of a refused action.
type DeniedError struct {
	AgentID    string
	Capability string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("agent %s lacks capability %s", e.AgentID, e.Capability)
}
func (e *DeniedError) ErrorCode() string { return "CAPABILITY_DENIED" }
func (e *DeniedError) Context() map[string]string {
	return map[string]string{"agent_id": e.AgentID, "capability": e.Capability}
}
func (e *DeniedError) SuggestedAction() string {
	return fmt.Sprintf("vceo capability grant %s %s", e.AgentID, e.Capability)
}
func (e *DeniedError) Is(target error) bool { return target == ErrDenied }

// Gate checks agent capability grants.
type Gate struct {
	db *sql.DB
}

// NewGate builds a Gate over the shared store.
func NewGate(db *sql.DB) *Gate {
	return &Gate{db: db}
}

// Allowed reports whether the agent holds the capability (or the
// wildcard grant).
func (g *Gate) Allowed(agentID, cap string) (bool, error) {
	if agentID == "" {
		return false, errors.New("agent id is required")
	}
	if cap == "" {
		return false, errors.New("capability is required")
	}
	return store.HasCapability(g.db, agentID, cap)
}

// Require returns a DeniedError when the agent lacks the capability.
func (g *Gate) Require(agentID, cap string) error {
	ok, err := g.Allowed(agentID, cap)
	if err != nil {
		return err
	}
	if !ok {
		return &DeniedError{AgentID: agentID, Capability: cap}
	}
	return nil
}
