package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/venturelane/vceo/internal/app"
	"github.com/venturelane/vceo/internal/budget"
	"github.com/venturelane/vceo/internal/capability"
	"github.com/venturelane/vceo/internal/output"
	"github.com/venturelane/vceo/internal/runtime"
)

// NewRunCmd creates the runtime loop driver. One loop per --agent flag;
// multiple agents run concurrently against the shared store.
func NewRunCmd() *cobra.Command {
	var (
		agents        []string
		maxIterations int
		pollInterval  string
		noBudget      bool
		noTruth       bool
		mode          string
		messageCost   float64
		maxFails      int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the message-processing loop for one or more agents",
		Long: `Run drives claim -> dispatch cycles for each named agent until the
iteration cap, budget exhaustion, or the consecutive-failure circuit
breaker. Flags override config.yaml; config.yaml overrides defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(agents) == 0 {
				return cmdErr(fmt.Errorf("at least one --agent is required"))
			}

			settings := app.EffectiveRuntimeSettings()
			if maxIterations <= 0 {
				maxIterations = settings.MaxIterations
			}
			poll := time.Duration(settings.PollIntervalMs) * time.Millisecond
			if pollInterval != "" {
				d, err := time.ParseDuration(pollInterval)
				if err != nil {
					return cmdErr(fmt.Errorf("invalid --poll-interval: %w", err))
				}
				poll = d
			}
			enforceBudget := settings.EnforceBudget && !noBudget
			truthLayer := settings.TruthLayer && !noTruth
			if mode == "" {
				mode = settings.Mode
			}

			db, closeDB, err := openDB()
			if err != nil {
				return cmdErr(err)
			}
			defer closeDB()

			controller := budget.NewController(db, budget.DefaultThresholds(), slog.Default())
			gate := capability.NewGate(db)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summaries := make([]*runtime.RunSummary, len(agents))
			g, gctx := errgroup.WithContext(ctx)
			for i, agent := range agents {
				i := i
				loop, err := runtime.New(db, runtime.Config{
					AgentID:                agent,
					MaxIterations:          maxIterations,
					PollInterval:           poll,
					DisableBudget:          !enforceBudget,
					DisableTruthLayer:      !truthLayer,
					Mode:                   mode,
					MessageCost:            messageCost,
					MaxConsecutiveFailures: maxFails,
				}, runtime.BaselineRegistry(gate), controller, slog.Default())
				if err != nil {
					return cmdErr(err)
				}

				g.Go(func() error {
					s, err := loop.Run(gctx)
					if err != nil {
						return err
					}
					summaries[i] = s
					return nil
				})
			}

			if err := g.Wait(); err != nil {
				return cmdErr(err)
			}
			return output.PrintSuccess(summaries)
		},
	}

	cmd.Flags().StringArrayVar(&agents, "agent", nil, "Agent to run a loop for (repeatable)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Stop after N cycles (default from config, 100)")
	cmd.Flags().StringVar(&pollInterval, "poll-interval", "", "Idle sleep between cycles (default from config, 5s)")
	cmd.Flags().BoolVar(&noBudget, "no-budget", false, "Disable budget enforcement for this run")
	cmd.Flags().BoolVar(&noTruth, "no-truth-layer", false, "Disable the truth layer (rejected in production mode)")
	cmd.Flags().StringVar(&mode, "mode", "", "Execution mode (development|production)")
	cmd.Flags().Float64Var(&messageCost, "message-cost", 1, "Estimated budget cost per processed message")
	cmd.Flags().IntVar(&maxFails, "max-fails", 5, "Circuit breaker: stop after N consecutive cycle failures")

	return cmd
}
