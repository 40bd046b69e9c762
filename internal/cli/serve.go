package cli

import (
	"github.com/koustreak/frameload/internal/load"
	"github.com/koustreak/frameload/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, flags, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			sc := rt.cfg.Server
			if cmd.Flags().Changed("addr") {
				sc.Addr = addr
			}

			srv := server.New(rt.db, rt.log, server.Options{
				Namespace:       rt.cfg.Database.Schema,
				Load:            load.Options{Concurrency: rt.cfg.Load.Concurrency},
				Transactional:   rt.cfg.Load.Transactional,
				MaxBodyBytes:    sc.MaxBodyBytes,
				ReadTimeout:     sc.ReadTimeout,
				WriteTimeout:    sc.WriteTimeout,
				ShutdownTimeout: sc.ShutdownTimeout,
			})
			return srv.ListenAndServe(cmd.Context(), sc.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
