package main

import (
	"github.com/spf13/cobra"

	"github.com/seenimoa/pianalytics/api"
)

// --- Serve Command (mock API server) ---

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a local mock of the analytics API",
		Long: `Serve the four analytics endpoints with canned data so the other
commands can be tried offline:

  pianalytics serve &
  pianalytics --base-url http://127.0.0.1:8080/api demo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}
			srv := api.NewServer(api.Options{
				Prefix: a.cfg.Server.Prefix,
				Logger: a.logger.Named("mock"),
			})
			return srv.ListenAndServe(cmd.Context(), a.cfg.Server.Addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address override (default from server.addr)")
	return cmd
}
