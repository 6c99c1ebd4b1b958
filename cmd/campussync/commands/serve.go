package commands

import (
	"time"

	"campussync/internal/api"
	"campussync/internal/telemetry"
	"campussync/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the sync API until interrupted.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		svc, cleanup := setup(ctx, "campussync")
		defer cleanup()

		telemetry.InstrumentPerfStats(ctx, 15*time.Second)

		server := api.NewServer(svc.orch, svc.tel)
		err := serviceutil.ServeHttp(ctx, svc.cfg.Listen, server.Router())
		if err != nil {
			serviceutil.Fatal("serve http", err)
		}
	},
}
