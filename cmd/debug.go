package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/SebastianAlessandro/gcam-core/app"
	"github.com/SebastianAlessandro/gcam-core/config"
)

var (
	debugPeriod int
	debugOut    string
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Solve through a period and dump the marketplace as XML",
	RunE:  runDebug,
}

func init() {
	debugCmd.Flags().IntVarP(&debugPeriod, "period", "p", 0, "period to dump")
	debugCmd.Flags().StringVarP(&debugOut, "out", "o", "", "output file, stdout when empty")
	rootCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, _ *config.Config, svc *app.Service) error {
		if _, err := svc.SolveThrough(ctx, debugPeriod); err != nil {
			return err
		}
		var w io.Writer = cmd.OutOrStdout()
		if debugOut != "" {
			f, err := os.Create(debugOut)
			if err != nil {
				return fmt.Errorf("debug output: %w", err)
			}
			defer f.Close()
			w = f
		}
		return svc.DebugXML(debugPeriod, w)
	})
}
