package commands

import (
	"github.com/spf13/cobra"

	"github.com/venturelane/vceo/internal/capability"
	"github.com/venturelane/vceo/internal/output"
	"github.com/venturelane/vceo/internal/store"
)

// NewCapabilityCmd groups capability-grant management.
func NewCapabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capability",
		Short: "Manage agent capability grants",
	}
	cmd.AddCommand(newCapabilityGrantCmd())
	cmd.AddCommand(newCapabilityRevokeCmd())
	cmd.AddCommand(newCapabilityListCmd())
	cmd.AddCommand(newCapabilityCheckCmd())
	return cmd
}

func newCapabilityGrantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <agent> <capability>",
		Short: "Grant a capability to an agent ('*' grants all)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *DB) error {
				if err := store.GrantCapability(db, args[0], args[1]); err != nil {
					return err
				}
				type resp struct {
					AgentID    string `json:"agent_id"`
					Capability string `json:"capability"`
					Granted    bool   `json:"granted"`
				}
				return output.PrintSuccess(resp{AgentID: args[0], Capability: args[1], Granted: true})
			})
		},
	}
}

func newCapabilityRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <agent> <capability>",
		Short: "Revoke a capability from an agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *DB) error {
				if err := store.RevokeCapability(db, args[0], args[1]); err != nil {
					return err
				}
				type resp struct {
					AgentID    string `json:"agent_id"`
					Capability string `json:"capability"`
					Revoked    bool   `json:"revoked"`
				}
				return output.PrintSuccess(resp{AgentID: args[0], Capability: args[1], Revoked: true})
			})
		},
	}
}

func newCapabilityListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <agent>",
		Short: "List an agent's capability grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *DB) error {
				caps, err := store.ListCapabilities(db, args[0])
				if err != nil {
					return err
				}
				return output.PrintSuccess(caps)
			})
		},
	}
}

func newCapabilityCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <agent> <capability>",
		Short: "Check whether an agent holds a capability",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *DB) error {
				allowed, err := capability.NewGate(db).Allowed(args[0], args[1])
				if err != nil {
					return err
				}
				type resp struct {
					AgentID    string `json:"agent_id"`
					Capability string `json:"capability"`
					Allowed    bool   `json:"allowed"`
				}
				return output.PrintSuccess(resp{AgentID: args[0], Capability: args[1], Allowed: allowed})
			})
		},
	}
}
