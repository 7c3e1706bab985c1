package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/venturelane/vceo/internal/models"
	"github.com/venturelane/vceo/internal/output"
	"github.com/venturelane/vceo/internal/store"
)

// NewMessageCmd groups message operations.
func NewMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send and inspect inter-agent messages",
	}
	cmd.AddCommand(newMessageSendCmd())
	cmd.AddCommand(newMessageListCmd())
	cmd.AddCommand(newMessageShowCmd())
	return cmd
}

func parsePriority(s string) (models.Priority, error) {
	switch s {
	case "low":
		return models.PriorityLow, nil
	case "", "normal":
		return models.PriorityNormal, nil
	case "high":
		return models.PriorityHigh, nil
	case "critical":
		return models.PriorityCritical, nil
	}
	return 0, fmt.Errorf("invalid priority %q (low|normal|high|critical)", s)
}

func newMessageSendCmd() *cobra.Command {
	var (
		msgType  string
		from     string
		to       string
		subject  string
		body     string
		priority string
		corrID   string
		deadline string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Enqueue a pending message for an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if msgType == "" {
				return cmdErr(fmt.Errorf("--type is required"))
			}
			if from == "" || to == "" {
				return cmdErr(fmt.Errorf("--from and --to are required"))
			}

			prio, err := parsePriority(priority)
			if err != nil {
				return cmdErr(err)
			}

			var deadlinePtr *time.Time
			if deadline != "" {
				d, err := time.ParseDuration(deadline)
				if err != nil {
					return cmdErr(fmt.Errorf("invalid --deadline: %w", err))
				}
				t := time.Now().Add(d)
				deadlinePtr = &t
			}

			var bodyJSON json.RawMessage
			if body != "" {
				bodyJSON = json.RawMessage(body)
			}

			return withDB(func(db *DB) error {
				msg, err := store.InsertMessage(db, store.NewMessage{
					Type:             models.MessageType(msgType),
					FromAgent:        from,
					ToAgent:          to,
					Subject:          subject,
					Body:             bodyJSON,
					Priority:         prio,
					CorrelationID:    corrID,
					ResponseDeadline: deadlinePtr,
				})
				if err != nil {
					return err
				}
				store.RecordRuntimeEvent(db, models.EventKindMessageSent, from, msg.ID, string(msg.Type))
				return output.PrintSuccess(msg)
			})
		},
	}

	cmd.Flags().StringVar(&msgType, "type", "", "Message type (task_delegation, query, ...)")
	cmd.Flags().StringVar(&from, "from", "", "Sending agent")
	cmd.Flags().StringVar(&to, "to", "", "Receiving agent")
	cmd.Flags().StringVar(&subject, "subject", "", "Subject line")
	cmd.Flags().StringVar(&body, "body", "", "JSON body")
	cmd.Flags().StringVar(&priority, "priority", "normal", "Priority (low|normal|high|critical)")
	cmd.Flags().StringVar(&corrID, "correlation-id", "", "Correlation id for request/response pairing")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Response deadline as a duration from now (e.g. 30m)")

	return cmd
}

func newMessageListCmd() *cobra.Command {
	var (
		agent  string
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *DB) error {
				msgs, err := store.ListMessages(db, store.MessageFilter{
					ToAgent: agent,
					Status:  models.MessageStatus(status),
					Limit:   limit,
				})
				if err != nil {
					return err
				}
				return output.PrintSuccess(msgs)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Filter by receiving agent")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")

	return cmd
}

func newMessageShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *DB) error {
				msg, err := store.GetMessage(db, args[0])
				if err != nil {
					return err
				}
				return output.PrintSuccess(msg)
			})
		},
	}
	return cmd
}
