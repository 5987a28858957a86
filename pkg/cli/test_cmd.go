package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/querylab/dune-smoke/internal/dune"
	"github.com/querylab/dune-smoke/internal/logging"
	"github.com/querylab/dune-smoke/internal/registry"
	"github.com/querylab/dune-smoke/internal/report"
	"github.com/querylab/dune-smoke/internal/smoke"
)

func newTestCmd() *cobra.Command {
	var (
		all          bool
		architecture string
		timeout      time.Duration
		reportURL    string
	)

	cmd := &cobra.Command{
		Use:   "test [name]",
		Short: "Run smoke tests against the Dune API",
		Example: `  dune-smoke test bitcoin_tx_features_daily
  dune-smoke test --all
  dune-smoke test --all --architecture v2 --report file:///tmp/smoke-reports`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("provide a query name or --all")
			}
			if all && len(args) > 0 {
				return fmt.Errorf("--all does not take a query name")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := registry.Load(cfg.RegistryPath)
			if err != nil {
				return err
			}
			client, err := dune.New(dune.Config{
				APIKey:  cfg.APIKey,
				BaseURL: cfg.APIBaseURL,
			})
			if err != nil {
				return err
			}
			if timeout == 0 {
				timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
			}

			runner := smoke.NewRunner(reg, client, smoke.FileLoader{Root: cfg.QueryRoot})
			runID := logging.NewRunID()
			log := logging.RunLogger(runID)
			ctx := cmd.Context()
			startedAt := time.Now()

			var results []*smoke.Result
			if all {
				log.Info("running all smoke tests", "architecture", architecture, "timeout", timeout)
				results = runner.RunAll(ctx, architecture, timeout)
				if len(results) == 0 {
					fmt.Fprintln(os.Stdout, "No smoke tests found matching criteria.")
					return nil
				}
			} else {
				log.Info("running smoke test", "query", args[0], "timeout", timeout)
				results = []*smoke.Result{runner.RunTest(ctx, args[0], timeout)}
			}

			report.PrintResults(os.Stdout, results)

			destination := reportURL
			if destination == "" {
				destination = cfg.ReportURL
			}
			if destination != "" {
				store, err := report.OpenArtifactStore(ctx, destination)
				if err != nil {
					return err
				}
				defer store.Close()
				meta := report.RunMeta{
					RunID:        runID,
					Architecture: architecture,
					StartedAt:    startedAt,
				}
				if err := report.PublishRun(ctx, store, results, meta); err != nil {
					return err
				}
			}

			if !report.AllPassed(results) {
				return errFailure
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "run all available smoke tests")
	cmd.Flags().StringVar(&architecture, "architecture", "", "filter tests by architecture (v2|legacy, only with --all)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "timeout per test (default from config, 300s)")
	cmd.Flags().StringVar(&reportURL, "report", "", "artifact destination URL (file://, gs://, s3://)")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all available smoke tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := registry.Load(cfg.RegistryPath)
			if err != nil {
				return err
			}

			runner := smoke.NewRunner(reg, nil, smoke.FileLoader{Root: cfg.QueryRoot})
			tests := runner.ListAvailable()

			fmt.Fprintln(os.Stdout, "\nAvailable smoke tests:")
			fmt.Fprintln(os.Stdout, "------------------------------------------------------------")
			for _, t := range tests {
				fmt.Fprintf(os.Stdout, "  %s\n", t.Name)
				fmt.Fprintf(os.Stdout, "    File: %s\n", t.SmokeTest)
				fmt.Fprintf(os.Stdout, "    Architecture: %s, Type: %s\n", t.Architecture, t.Type)
			}
			fmt.Fprintf(os.Stdout, "\nTotal: %d tests\n", len(tests))
			return nil
		},
	}
}
