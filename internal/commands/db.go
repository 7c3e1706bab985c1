package commands

import (
	"github.com/spf13/cobra"

	"github.com/venturelane/vceo/internal/app"
	"github.com/venturelane/vceo/internal/output"
	"github.com/venturelane/vceo/internal/store"
)

// NewDBCmd creates the db command group. Migrations apply automatically
// on open, so migrate-status is a report, not an action.
func NewDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}

	cmd.AddCommand(newDBMigrateStatusCmd())

	return cmd
}

func newDBMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-status",
		Short: "Show applied vs available schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *DB) error {
				current, latest, err := store.SchemaVersion(db)
				if err != nil {
					return cmdErr(err)
				}

				dbPath, err := app.GetDBPath()
				if err != nil {
					return cmdErr(err)
				}

				type resp struct {
					Path     string `json:"path"`
					Current  int64  `json:"current"`
					Latest   int64  `json:"latest"`
					UpToDate bool   `json:"up_to_date"`
				}
				return output.PrintSuccess(resp{
					Path:     dbPath,
					Current:  current,
					Latest:   latest,
					UpToDate: current == latest,
				})
			})
		},
	}
}
