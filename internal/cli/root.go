// Package cli implements the frameload command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath  string
	dsn         string
	driver      string
	schema      string
	concurrency int
	logLevel    string
	logFormat   string
	output      string
}

// NewRootCommand builds the frameload command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "frameload",
		Short: "Load interdependent rows into a relational database",
		Long: `frameload inserts frames of rows into tables linked by foreign keys.

It introspects the target schema, orders tables so referenced rows are
inserted first, and replaces temporary identifiers (!tmp in fixtures) with
the keys the database generated.

Examples:

  frameload constraints --driver sqlite --dsn app.db
  frameload plan fixtures/seed.yaml
  frameload load fixtures/seed.yaml
  frameload load s3://fixtures/seed/ --no-tx --concurrency 4
  frameload serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&flags.dsn, "dsn", "", "database connection string (overrides FRAMELOAD_DB_DSN)")
	pf.StringVar(&flags.driver, "driver", "", "database driver: postgres, mysql or sqlite")
	pf.StringVar(&flags.schema, "schema", "", "schema (namespace) to introspect")
	pf.IntVar(&flags.concurrency, "concurrency", 0, "tables of one dependency level loaded at once")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: json or console")
	pf.StringVarP(&flags.output, "output", "o", "yaml", "result format: yaml or json")

	root.AddCommand(
		newConstraintsCommand(flags),
		newPlanCommand(flags),
		newLoadCommand(flags),
		newServeCommand(flags),
	)
	return root
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
