package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/venturelane/vceo/internal/models"
	"github.com/venturelane/vceo/internal/output"
	"github.com/venturelane/vceo/internal/store"
	"github.com/venturelane/vceo/internal/truth"
)

// NewPredictCmd groups truth-layer operations.
func NewPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Log predictions, resolve outcomes, compute calibration",
	}
	cmd.AddCommand(newPredictLogCmd())
	cmd.AddCommand(newPredictResolveCmd())
	cmd.AddCommand(newPredictListCmd())
	cmd.AddCommand(newPredictCalibrationCmd())
	cmd.AddCommand(newPredictValidateCmd())
	return cmd
}

func newPredictValidateCmd() *cobra.Command {
	var hypothesis string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a business hypothesis document against the fixed schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc map[string]any
			if err := json.Unmarshal([]byte(hypothesis), &doc); err != nil {
				return cmdErr(fmt.Errorf("hypothesis must be a JSON object: %w", err))
			}

			type resp struct {
				Valid      bool     `json:"valid"`
				Violations []string `json:"violations,omitempty"`
			}

			if err := truth.ValidateBusinessHypothesis(doc); err != nil {
				var verr *truth.ValidationError
				if errors.As(err, &verr) {
					return output.PrintSuccess(resp{Violations: verr.Violations})
				}
				return cmdErr(err)
			}
			return output.PrintSuccess(resp{Valid: true})
		},
	}

	cmd.Flags().StringVar(&hypothesis, "hypothesis", "", "Hypothesis document as JSON")

	return cmd
}

func newPredictLogCmd() *cobra.Command {
	var (
		agent      string
		predType   string
		statement  string
		confidence float64
		timeframe  string
		metadata   string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log a pending prediction",
		RunE: func(cmd *cobra.Command, args []string) error {
			var meta json.RawMessage
			if metadata != "" {
				meta = json.RawMessage(metadata)
			}
			return withDB(func(db *DB) error {
				rec := truth.NewRecorder(db, slog.Default())
				p, err := rec.LogPrediction(truth.NewPrediction{
					AgentID:    agent,
					Type:       predType,
					Statement:  statement,
					Confidence: confidence,
					Timeframe:  timeframe,
					Metadata:   meta,
				})
				if err != nil {
					return err
				}
				if p == nil {
					// Persistence failed; the recorder logged it and moved on.
					type resp struct {
						Persisted bool `json:"persisted"`
					}
					return output.PrintSuccess(resp{Persisted: false})
				}
				return output.PrintSuccess(p)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent id")
	cmd.Flags().StringVar(&predType, "type", "", "Prediction category")
	cmd.Flags().StringVar(&statement, "statement", "", "The forward-looking claim")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "Confidence in [0,1]")
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "When the prediction resolves (e.g. 30d)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON metadata")

	return cmd
}

func newPredictResolveCmd() *cobra.Command {
	var (
		correct   bool
		actual    float64
		hasActual bool
		evidence  string
	)

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve a prediction against its observed outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasActual = cmd.Flags().Changed("actual")
			return withDB(func(db *DB) error {
				rec := truth.NewRecorder(db, slog.Default())
				o := truth.Outcome{WasCorrect: correct, Evidence: evidence}
				if hasActual {
					o.ActualValue = &actual
				}
				p, err := rec.LogOutcome(args[0], o)
				if err != nil {
					return err
				}
				return output.PrintSuccess(p)
			})
		},
	}

	cmd.Flags().BoolVar(&correct, "correct", false, "Whether the prediction was correct")
	cmd.Flags().Float64Var(&actual, "actual", 0, "Observed numeric value, if any")
	cmd.Flags().StringVar(&evidence, "evidence", "", "Supporting evidence")

	return cmd
}

func newPredictListCmd() *cobra.Command {
	var (
		agent  string
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an agent's predictions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" {
				return cmdErr(fmt.Errorf("--agent is required"))
			}
			return withDB(func(db *DB) error {
				ps, err := store.ListPredictions(db, agent, models.PredictionStatus(status), limit)
				if err != nil {
					return err
				}
				return output.PrintSuccess(ps)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent id")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending|resolved)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")

	return cmd
}

func newPredictCalibrationCmd() *cobra.Command {
	var (
		agent  string
		period string
	)

	cmd := &cobra.Command{
		Use:   "calibration",
		Short: "Compute calibration statistics over a lookback window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" {
				return cmdErr(fmt.Errorf("--agent is required"))
			}
			return withDB(func(db *DB) error {
				rec := truth.NewRecorder(db, slog.Default())
				report, err := rec.Calibration(agent, truth.Period(period))
				if err != nil {
					return err
				}
				return output.PrintSuccess(report)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent id")
	cmd.Flags().StringVar(&period, "period", "all", "Lookback window (week|month|quarter|all)")

	return cmd
}
