package commands

import (
	"github.com/spf13/cobra"

	"github.com/cloudvigil/cloudvigil/internal/app"
	"github.com/cloudvigil/cloudvigil/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Start the HTTP API. Scans are launched per account via POST and
polled for progress; findings and rule overrides are served from the
configured storage backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		api := server.NewWebAPI(a.Logger, server.Config{
			Addr:            cfg.Server.Addr,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, server.Dependencies{
			Orchestrator:  a.Orchestrator,
			Findings:      a.Findings,
			Rules:         a.Rules,
			NewCollectors: a.Collectors,
		})
		return api.Start()
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	serveCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		return nil
	}
}
