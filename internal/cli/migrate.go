package cli

import (
	"fmt"

	"github.com/propertyhub/backoffice/internal/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := connect(cmd.Context())
				if err != nil {
					return err
				}
				defer closeDB(db)()
				return database.Migrate(cmd.Context(), db.DB.DB, newLogger(cmd.ErrOrStderr()))
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := connect(cmd.Context())
				if err != nil {
					return err
				}
				defer closeDB(db)()
				if err := database.Rollback(cmd.Context(), db.DB.DB); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rolled back one migration.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := connect(cmd.Context())
				if err != nil {
					return err
				}
				defer closeDB(db)()
				version, err := database.MigrationVersion(cmd.Context(), db.DB.DB)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(cmd.OutOrStdout(), map[string]int64{"version": version})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d\n", version)
				return nil
			},
		},
	)

	return cmd
}
