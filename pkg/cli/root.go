// Package cli implements the dune-smoke command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/querylab/dune-smoke/internal/config"
	"github.com/querylab/dune-smoke/internal/logging"
)

// Version information (set via ldflags).
var (
	version = "v0.1.0"
	commit  = "unknown"
)

// errFailure signals a non-zero exit after the command already reported the
// problem on its own output (failed smoke tests, registry findings).
var errFailure = errors.New("command reported failures")

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailure) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dune-smoke",
		Short:         "Manage and smoke-test Dune analytics queries",
		Long:          "dune-smoke manages a registry of Dune analytics queries and runs smoke tests\nagainst the Dune API to validate query correctness and data freshness.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "config file (YAML)")
	root.PersistentFlags().String("registry", "", "registry file (overrides config)")
	root.PersistentFlags().String("log-level", "", "log level: debug|info|warn|error")
	root.PersistentFlags().String("log-format", "", "log format: text|json")

	root.AddCommand(
		newTestCmd(),
		newListCmd(),
		newRegistryCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves configuration for one command invocation and
// initializes logging from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if reg, _ := cmd.Flags().GetString("registry"); reg != "" {
		cfg.RegistryPath = reg
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}

	logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
	return cfg, nil
}
