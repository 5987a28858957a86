package cli

import (
	"fmt"
	"os"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/querylab/dune-smoke/internal/registry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the query registry",
	}
	cmd.AddCommand(
		newRegistryListCmd(),
		newRegistryShowCmd(),
		newRegistrySetIDCmd(),
		newRegistryValidateCmd(),
	)
	return cmd
}

func newRegistryListCmd() *cobra.Command {
	var (
		architecture  string
		queryType     string
		withSmokeTest bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queries in the registry",
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

			filter := registry.Filter{
				Architecture: architecture,
				Type:         queryType,
			}
			if cmd.Flags().Changed("with-smoke-test") {
				filter.WithSmokeTest = &withSmokeTest
			}
			queries := reg.List(filter)

			fmt.Fprintf(os.Stdout, "\nQuery Registry (%d queries)\n", len(queries))
			fmt.Fprintln(os.Stdout, "================================================================================")
			printQueryTable(queries)
			fmt.Fprintln(os.Stdout)
			return nil
		},
	}

	cmd.Flags().StringVar(&architecture, "architecture", "", "filter by architecture (v2|legacy)")
	cmd.Flags().StringVar(&queryType, "type", "", "filter by type (base|nested|standalone)")
	cmd.Flags().BoolVar(&withSmokeTest, "with-smoke-test", false, "only show queries with smoke tests")
	return cmd
}

func printQueryTable(queries []registry.Entry) {
	if len(queries) == 0 {
		fmt.Fprintln(os.Stdout, "No queries found.")
		return
	}

	fmt.Fprintf(os.Stdout, "%-35s | %-10s | %-8s | %-12s | %s\n",
		"Name", "Type", "Arch", "Dune ID", "Smoke Test")
	fmt.Fprintln(os.Stdout, "--------------------------------------------------------------------------------")
	for _, q := range queries {
		duneID := "-"
		if q.DuneQueryID != 0 {
			duneID = strconv.FormatInt(q.DuneQueryID, 10)
		}
		hasSmoke := "No"
		if q.SmokeTest != "" {
			hasSmoke = "Yes"
		}
		fmt.Fprintf(os.Stdout, "%-35s | %-10s | %-8s | %-12s | %s\n",
			truncate(q.Name, 35), orDash(q.Type), orDash(q.Architecture), duneID, hasSmoke)
	}
}

func newRegistryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show details for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := registry.Load(cfg.RegistryPath)
			if err != nil {
				return err
			}

			entry := reg.Get(args[0])
			if entry == nil {
				return fmt.Errorf("query '%s' not found in registry", args[0])
			}

			data, err := json.MarshalIndent(entry, "", "  ")
			if err != nil {
				return fmt.Errorf("encode entry: %w", err)
			}
			fmt.Fprintf(os.Stdout, "\nQuery: %s\n", entry.Name)
			fmt.Fprintln(os.Stdout, "----------------------------------------")
			fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
}

func newRegistrySetIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-id <name> <dune-id>",
		Short: "Set the Dune query ID for a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := registry.Load(cfg.RegistryPath)
			if err != nil {
				return err
			}

			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid Dune query ID %q: %w", args[1], err)
			}

			if !reg.SetQueryID(args[0], id) {
				return fmt.Errorf("query '%s' not found in registry", args[0])
			}
			if err := reg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Updated '%s' with Dune query ID: %d\n", args[0], id)
			return nil
		},
	}
}

func newRegistryValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate registry consistency",
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

			fmt.Fprintln(os.Stdout, "\nValidating registry...")
			fmt.Fprintln(os.Stdout, "----------------------------------------")

			findings := reg.Validate(cfg.QueryRoot)
			if len(findings) == 0 {
				fmt.Fprintln(os.Stdout, "[+] Registry is valid!")
				return nil
			}

			fmt.Fprintf(os.Stdout, "[X] Found %d error(s):\n\n", len(findings))
			for _, f := range findings {
				fmt.Fprintf(os.Stdout, "  - %s\n", f)
			}
			return errFailure
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
