// Package cli defines the cobra command tree for bookingctl, the booking
// backoffice maintenance tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/propertyhub/backoffice/internal/config"
	"github.com/propertyhub/backoffice/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagFormat  string
	flagVerbose bool
)

// storeOpener connects to the booking store and returns a close func
type storeOpener func(ctx context.Context) (database.Store, func(), error)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	return newRootCmd(openPostgresStore)
}

func newRootCmd(open storeOpener) *cobra.Command {
	root := &cobra.Command{
		Use:           "bookingctl",
		Short:         "Maintain the property booking database",
		Long:          "Maintenance tool for the booking backoffice: schema migrations, reservation audits and refund reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newMigrateCmd(),
		newAuditOverlapsCmd(open),
		newRefundReportCmd(open),
		newGenSecretCmd(),
		newDevTokenCmd(),
	)

	return root
}

func newLogger(w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if flagVerbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func openPostgresStore(ctx context.Context) (database.Store, func(), error) {
	db, err := connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	return database.NewPostgresStore(db.DB), closeDB(db), nil
}

func connect(ctx context.Context) (*database.PostgresDB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return database.NewConnection(ctx, cfg.Database)
}

func closeDB(db *database.PostgresDB) func() {
	return func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
		}
	}
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
