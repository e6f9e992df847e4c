package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nvandessel/timeshift/internal/config"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "timeshift",
		Short: "Date-shifted variants of the tau2 airline domain",
		Long: `timeshift generates copies of the tau2 airline domain in which every date
has been moved by a fixed number of days, validates them, runs the
evaluation framework against each offset and compares the results.

Variants are written next to the source domain as
airline_offset_p365d (+365 days) or airline_offset_n365d (-365 days).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(cmd.ErrOrStderr(), verbose)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default <root>/timeshift.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(
		newVersionCmd(),
		newGenerateCmd(),
		newGenerateAllCmd(),
		newListCmd(),
		newShiftCmd(),
		newValidateCmd(),
		newValidateAllCmd(),
		newRunCmd(),
		newResultsCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd, map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "timeshift version %s\n", version)
			return nil
		},
	}
}

// loadConfig reads the experiment config for the --root and --config flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	root, _ := cmd.Flags().GetString("root")
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Open(root, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
