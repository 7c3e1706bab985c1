package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/venturelane/vceo/internal/budget"
	"github.com/venturelane/vceo/internal/models"
	"github.com/venturelane/vceo/internal/output"
	"github.com/venturelane/vceo/internal/store"
)

// NewBudgetCmd groups budget operations.
func NewBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage agent resource budgets and admission decisions",
	}
	cmd.AddCommand(newBudgetSetCmd())
	cmd.AddCommand(newBudgetShowCmd())
	cmd.AddCommand(newBudgetCheckCmd())
	cmd.AddCommand(newBudgetDecisionsCmd())
	return cmd
}

func newBudgetSetCmd() *cobra.Command {
	var (
		agent    string
		venture  string
		daily    float64
		monthly  float64
		warn     float64
		critical float64
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or replace an agent's budget limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" {
				return cmdErr(fmt.Errorf("--agent is required"))
			}
			return withDB(func(db *DB) error {
				err := store.SetBudget(db, models.Budget{
					AgentID:           agent,
					VentureID:         venture,
					DailyLimit:        daily,
					MonthlyLimit:      monthly,
					WarningThreshold:  warn,
					CriticalThreshold: critical,
				})
				if err != nil {
					return err
				}
				b, err := store.GetBudget(db, agent)
				if err != nil {
					return err
				}
				return output.PrintSuccess(b)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent id")
	cmd.Flags().StringVar(&venture, "venture", "", "Venture id")
	cmd.Flags().Float64Var(&daily, "daily", 0, "Daily limit")
	cmd.Flags().Float64Var(&monthly, "monthly", 0, "Monthly limit")
	cmd.Flags().Float64Var(&warn, "warn", 80, "Warning threshold percent")
	cmd.Flags().Float64Var(&critical, "critical", 95, "Critical threshold percent")

	return cmd
}

func newBudgetShowCmd() *cobra.Command {
	var agent string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an agent's budget (absent means unlimited)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" {
				return cmdErr(fmt.Errorf("--agent is required"))
			}
			return withDB(func(db *DB) error {
				b, err := store.GetBudget(db, agent)
				if err != nil {
					return err
				}
				if b == nil {
					type resp struct {
						AgentID   string `json:"agent_id"`
						Unlimited bool   `json:"unlimited"`
					}
					return output.PrintSuccess(resp{AgentID: agent, Unlimited: true})
				}
				return output.PrintSuccess(b)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent id")
	return cmd
}

func newBudgetCheckCmd() *cobra.Command {
	var (
		agent     string
		operation string
		cost      float64
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run an admission check without consuming budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" {
				return cmdErr(fmt.Errorf("--agent is required"))
			}
			return withDB(func(db *DB) error {
				controller := budget.NewController(db, budget.DefaultThresholds(), slog.Default())
				d := controller.Check(cmd.Context(), agent, operation, cost)
				return output.PrintSuccess(d)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent id")
	cmd.Flags().StringVar(&operation, "operation", "manual_check", "Operation type for the decision log")
	cmd.Flags().Float64Var(&cost, "cost", 1, "Estimated cost")

	return cmd
}

func newBudgetDecisionsCmd() *cobra.Command {
	var (
		agent string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List recent admission decisions for an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" {
				return cmdErr(fmt.Errorf("--agent is required"))
			}
			return withDB(func(db *DB) error {
				ds, err := store.ListBudgetDecisions(db, agent, limit)
				if err != nil {
					return err
				}
				return output.PrintSuccess(ds)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent id")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")

	return cmd
}
