package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/SebastianAlessandro/gcam-core/app"
	"github.com/SebastianAlessandro/gcam-core/config"
	"github.com/SebastianAlessandro/gcam-core/core/solver"
)

const defaultConfig = "config.yaml"

var (
	cfgPath      string
	scenarioPath string
	exportPath   string
)

var rootCmd = &cobra.Command{
	Use:           "gcam",
	Short:         "Solve a multi-region marketplace to equilibrium",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfig, "configuration file")
	rootCmd.PersistentFlags().StringVarP(&scenarioPath, "scenario", "s", "", "scenario file, overrides the configuration")
	rootCmd.Flags().StringVarP(&exportPath, "export", "o", "", "write solved prices to a .csv, .json or .html file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configuration file. A missing default file is not an
// error, the environment and defaults are used instead.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if scenarioPath != "" {
		cfg.Scenario = scenarioPath
	}
	return cfg, nil
}

// withService builds the service of the run and closes it once fn returns.
func withService(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := app.New(cfg, app.WithLogOutput(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "service close: %v\n", err)
		}
	}()
	return fn(ctx, cfg, svc)
}

func run(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, cfg *config.Config, svc *app.Service) error {
		results, err := svc.Run(ctx)
		printSummary(cmd.OutOrStdout(), results)
		if err != nil {
			return err
		}
		out := exportPath
		if out == "" {
			out = cfg.Export
		}
		if out != "" {
			return svc.Export(out)
		}
		return nil
	})
}

func printSummary(w io.Writer, results []solver.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tCONVERGED\tITERATIONS\tNEWTON\tMAX RED\tWORST\tDURATION")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%t\t%d\t%d\t%.3g\t%s\t%s\n",
			r.Period, r.Converged, r.Iterations, r.NewtonSteps, r.MaxRelativeExcessDemand, r.WorstMarket, r.Duration.Round(time.Microsecond))
	}
	_ = tw.Flush()
}
