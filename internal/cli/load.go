package cli

import (
	"github.com/koustreak/frameload/internal/config"
	"github.com/koustreak/frameload/internal/fixture"
	"github.com/koustreak/frameload/internal/load"
	"github.com/spf13/cobra"
)

func newLoadCommand(flags *globalFlags) *cobra.Command {
	var noTx bool

	cmd := &cobra.Command{
		Use:   "load <fixture>",
		Short: "Insert a fixture into the database",
		Long: `Insert every frame of a fixture, resolving temporary identifiers.

By default the whole load runs in one transaction and nothing is written
unless every row succeeds. --no-tx loads on the pool instead, which allows
--concurrency above 1 but keeps tables loaded before a failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, flags, func(cfg *config.Config) {
				if noTx {
					cfg.Load.Transactional = false
				}
			})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			frames, err := fixture.Load(ctx, rt.store, args[0])
			if err != nil {
				return err
			}

			opts := load.Options{Concurrency: rt.cfg.Load.Concurrency}
			namespace := rt.cfg.Database.Schema

			var report *load.LoadReport
			if rt.cfg.Load.Transactional {
				report, err = load.RunInTx(ctx, rt.db, namespace, frames, opts)
			} else {
				report, err = load.RunDirect(ctx, rt.db, namespace, frames, opts)
			}
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), flags.output, report)
		},
	}
	cmd.Flags().BoolVar(&noTx, "no-tx", false, "load without a surrounding transaction")
	return cmd
}
