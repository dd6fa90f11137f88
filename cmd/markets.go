package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SebastianAlessandro/gcam-core/app"
	"github.com/SebastianAlessandro/gcam-core/config"
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "Market related commands",
}

var marketsLsPeriod int

var marketsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the markets of the scenario",
	RunE:  runMarketsLs,
}

func init() {
	marketsLsCmd.Flags().IntVarP(&marketsLsPeriod, "period", "p", 0, "period whose initial state is shown")
	marketsCmd.AddCommand(marketsLsCmd)
	rootCmd.AddCommand(marketsCmd)
}

func runMarketsLs(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(_ context.Context, _ *config.Config, svc *app.Service) error {
		if err := svc.Marketplace.InitPrices(marketsLsPeriod); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MARKET\tTYPE\tREGIONS\tSOLVE\tPRICE")
		for _, m := range svc.Marketplace.Markets(marketsLsPeriod) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%g\n",
				m.Name(), m.Type(), strings.Join(m.ContainedRegions(), ","), m.SolveMarket(), m.Price())
		}
		return tw.Flush()
	})
}
