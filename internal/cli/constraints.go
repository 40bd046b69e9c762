package cli

import (
	"github.com/koustreak/frameload/internal/schema"
	"github.com/spf13/cobra"
)

func newConstraintsCommand(flags *globalFlags) *cobra.Command {
	var foreignOnly bool

	cmd := &cobra.Command{
		Use:   "constraints",
		Short: "List the constraints of the target schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, flags, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			in := schema.New(rt.db, rt.cfg.Database.Schema)
			var cs []schema.Constraint
			if foreignOnly {
				cs, err = in.ListForeignKeyConstraints(cmd.Context())
			} else {
				cs, err = in.ListAllConstraints(cmd.Context())
			}
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), flags.output, cs)
		},
	}
	cmd.Flags().BoolVar(&foreignOnly, "foreign-keys", false, "only list foreign key constraints")
	return cmd
}
