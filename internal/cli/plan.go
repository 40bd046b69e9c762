package cli

import (
	"github.com/koustreak/frameload/internal/fixture"
	"github.com/koustreak/frameload/internal/load"
	"github.com/koustreak/frameload/internal/schema"
	"github.com/spf13/cobra"
)

func newPlanCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <fixture>",
		Short: "Print the order a fixture would be loaded in",
		Long: `Print the load plan of a fixture without writing anything.

<fixture> is a YAML file, "-" for stdin, or an s3://bucket/key location
(a key ending in "/" reads every .yaml file below it).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, flags, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			frames, err := fixture.Load(cmd.Context(), rt.store, args[0])
			if err != nil {
				return err
			}
			p, err := load.Plan(cmd.Context(), schema.New(rt.db, rt.cfg.Database.Schema), frames)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), flags.output, p)
		},
	}
}
