package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/venturelane/vceo/internal/models"
	"github.com/venturelane/vceo/internal/output"
	"github.com/venturelane/vceo/internal/store"
)

// NewMemoryCmd groups agent working-memory operations.
func NewMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and update venture-scoped agent memory",
	}
	cmd.AddCommand(newMemorySaveCmd())
	cmd.AddCommand(newMemoryListCmd())
	cmd.AddCommand(newMemoryHistoryCmd())
	return cmd
}

func newMemorySaveCmd() *cobra.Command {
	var (
		agent      string
		venture    string
		memoryType string
		content    string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a new memory version, superseding the current one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(content)) {
				return cmdErr(fmt.Errorf("--content must be valid JSON"))
			}
			return withDB(func(db *DB) error {
				rec, err := store.SaveMemory(db, models.MemoryUpdate{
					VentureID:  venture,
					MemoryType: memoryType,
					Content:    json.RawMessage(content),
				}, agent)
				if err != nil {
					return err
				}
				return output.PrintSuccess(rec)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent id")
	cmd.Flags().StringVar(&venture, "venture", "", "Venture id the memory is scoped to")
	cmd.Flags().StringVar(&memoryType, "type", "", "Memory type")
	cmd.Flags().StringVar(&content, "content", "{}", "Memory content as JSON")

	return cmd
}

func newMemoryListCmd() *cobra.Command {
	var (
		agent   string
		venture string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List current memory records for an agent and venture",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" || venture == "" {
				return cmdErr(fmt.Errorf("--agent and --venture are required"))
			}
			return withDB(func(db *DB) error {
				recs, err := store.CurrentMemory(db, agent, venture)
				if err != nil {
					return err
				}
				return output.PrintSuccess(recs)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent id")
	cmd.Flags().StringVar(&venture, "venture", "", "Venture id")

	return cmd
}

func newMemoryHistoryCmd() *cobra.Command {
	var (
		agent      string
		venture    string
		memoryType string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show every version of one memory, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" || venture == "" || memoryType == "" {
				return cmdErr(fmt.Errorf("--agent, --venture and --type are required"))
			}
			return withDB(func(db *DB) error {
				recs, err := store.MemoryHistory(db, agent, venture, memoryType)
				if err != nil {
					return err
				}
				return output.PrintSuccess(recs)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent id")
	cmd.Flags().StringVar(&venture, "venture", "", "Venture id")
	cmd.Flags().StringVar(&memoryType, "type", "", "Memory type")

	return cmd
}
