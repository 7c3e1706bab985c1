package commands

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/venturelane/vceo/internal/app"
	"github.com/venturelane/vceo/internal/output"
	"github.com/venturelane/vceo/internal/store"
)

// NewStatusCmd creates the status command: installation overview,
// connectivity check, the runtime event log, and command schemas for
// agent-driven callers. Pass the root command so --schema can walk the
// full command tree; callers in root.go must call NewStatusCmd(root)
// after the root command is fully wired.
func NewStatusCmd(root *cobra.Command) *cobra.Command {
	var (
		check      bool
		eventsMode bool
		schemaMode bool
		agent      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show vceo installation status and system overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case eventsMode:
				return runEventsMode(agent, limit)
			case schemaMode:
				return runSchemaMode(root)
			default:
				return runDefaultStatus(check)
			}
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Run database connectivity check (SELECT 1)")
	cmd.Flags().BoolVar(&eventsMode, "events", false, "List runtime events instead of the overview")
	cmd.Flags().StringVar(&agent, "agent", "", "Agent id for --events")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max events to return")
	cmd.Flags().BoolVar(&schemaMode, "schema", false, "Show command argument schemas")

	return cmd
}

func runEventsMode(agent string, limit int) error {
	if agent == "" {
		return cmdErr(errors.New("--agent is required with --events"))
	}

	var events []*store.RuntimeEvent
	if err := withDB(func(db *DB) error {
		ev, err := store.ListRuntimeEvents(db, agent, limit)
		if err != nil {
			return err
		}
		events = ev
		return nil
	}); err != nil {
		return err
	}

	type resp struct {
		Agent  string                `json:"agent"`
		Count  int                   `json:"count"`
		Events []*store.RuntimeEvent `json:"events"`
	}
	return output.PrintSuccess(resp{Agent: agent, Count: len(events), Events: events})
}

func runDefaultStatus(check bool) error {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return cmdErr(err)
	}

	type dbInfo struct {
		Path      string `json:"path"`
		OK        bool   `json:"ok"`
		SizeBytes *int64 `json:"size_bytes,omitempty"`
		Error     string `json:"error,omitempty"`
	}

	type schemaInfo struct {
		Current int64 `json:"current"`
		Latest  int64 `json:"latest"`
	}

	type resp struct {
		DB         dbInfo              `json:"db"`
		Schema     *schemaInfo         `json:"schema,omitempty"`
		Counts     *store.StatusCounts `json:"counts,omitempty"`
		QueryOK    *bool               `json:"query_ok,omitempty"`
		QueryError string              `json:"query_error,omitempty"`
	}

	result := resp{DB: dbInfo{Path: dbPath}}

	db, err := store.InitDBWithPath(dbPath)
	if err != nil {
		result.DB.Error = err.Error()
		if check {
			qOK := false
			result.QueryOK = &qOK
			result.QueryError = "db not available"
		}
		return output.PrintSuccess(result)
	}
	defer func() { _ = db.Close() }()
	result.DB.OK = true

	if stat, err := os.Stat(dbPath); err == nil {
		size := stat.Size()
		result.DB.SizeBytes = &size
	}

	if current, latest, err := store.SchemaVersion(db); err == nil {
		result.Schema = &schemaInfo{Current: current, Latest: latest}
	}

	if counts, err := store.GetStatusCounts(db); err == nil {
		result.Counts = counts
	}

	if check {
		var one int
		qErr := db.QueryRowContext(context.Background(), "SELECT 1").Scan(&one)
		qOK := qErr == nil
		result.QueryOK = &qOK
		if !qOK {
			result.QueryError = qErr.Error()
		}
	}

	return output.PrintSuccess(result)
}

func runSchemaMode(root *cobra.Command) error {
	type resp struct {
		Commands []commandArgSchema `json:"commands"`
	}
	schemas := make([]commandArgSchema, 0)
	collectCommandSchemas(root, &schemas)
	return output.PrintSuccess(resp{Commands: schemas})
}

// commandArgSchema is a JSON-schema-like description of one command's
// flags, consumed by agents that generate vceo invocations.
type commandArgSchema struct {
	Command     string                 `json:"command"`
	Description string                 `json:"description,omitempty"`
	ArgsSchema  map[string]interface{} `json:"args_schema"`
}

func collectCommandSchemas(cmd *cobra.Command, out *[]commandArgSchema) {
	name := cmd.Name()
	if name != "" && name != "vceo" && name != "help" && name != "completion" && !cmd.Hidden {
		*out = append(*out, buildCommandSchema(cmd))
	}
	for _, child := range cmd.Commands() {
		collectCommandSchemas(child, out)
	}
}

func buildCommandSchema(cmd *cobra.Command) commandArgSchema {
	properties := map[string]interface{}{}
	required := make([]string, 0)
	seen := map[string]bool{}

	addFlag := func(f *pflag.Flag) {
		if f.Hidden || seen[f.Name] {
			return
		}
		seen[f.Name] = true

		flagSchema := map[string]interface{}{
			"type":        normalizeFlagType(f.Value.Type()),
			"description": f.Usage,
		}
		if f.DefValue != "" {
			flagSchema["default"] = typedFlagDefault(f.Value.Type(), f.DefValue)
		}
		properties[f.Name] = flagSchema

		if isRequiredFlag(f) {
			required = append(required, f.Name)
		}
	}

	cmd.InheritedFlags().VisitAll(addFlag)
	cmd.NonInheritedFlags().VisitAll(addFlag)

	argsSchema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		argsSchema["required"] = required
	}

	return commandArgSchema{
		Command:     cmd.CommandPath(),
		Description: cmd.Short,
		ArgsSchema:  argsSchema,
	}
}

func normalizeFlagType(flagType string) string {
	switch flagType {
	case "int", "int64", "int32", "uint", "uint64", "uint32":
		return "integer"
	case "bool":
		return "boolean"
	case "float64", "float32":
		return "number"
	default:
		return "string"
	}
}

func typedFlagDefault(flagType, raw string) interface{} {
	switch flagType {
	case "bool":
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	case "int", "int64", "int32", "uint", "uint64", "uint32":
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	case "float64", "float32":
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return raw
}

func isRequiredFlag(f *pflag.Flag) bool {
	if f.Annotations != nil {
		if vals, ok := f.Annotations[cobra.BashCompOneRequiredFlag]; ok && len(vals) > 0 && vals[0] == "true" {
			return true
		}
	}
	return false
}
