package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/SebastianAlessandro/gcam-core/app"
	"github.com/SebastianAlessandro/gcam-core/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Solve every period, then serve the inspection API and metrics",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, _ *config.Config, svc *app.Service) error {
		results, err := svc.Run(ctx)
		printSummary(cmd.OutOrStdout(), results)
		if err != nil {
			return err
		}
		return svc.Serve(ctx)
	})
}
