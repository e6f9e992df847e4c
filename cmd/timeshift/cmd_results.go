package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/timeshift/internal/results"
	"github.com/nvandessel/timeshift/internal/sanitize"
	"github.com/spf13/cobra"
)

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Ingest, report and export evaluation results",
		Long: `Manage the results ledger (a SQLite database, results_db in the config).

Examples:
  timeshift results ingest
  timeshift results ingest data/simulations/time_ablation/offset_p365d/run.json
  timeshift results report
  timeshift results export --output ablation.xlsx`,
	}

	cmd.AddCommand(
		newResultsIngestCmd(),
		newResultsReportCmd(),
		newResultsExportCmd(),
	)
	return cmd
}

func openResults(cmd *cobra.Command) (*results.Store, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	store, err := results.Open(cfg.ResultsDB)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open results ledger: %w", err)
	}
	return store, cfg.ResultsDir, nil
}

func newResultsIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Load results files into the ledger",
		Long: `Load a results file, or every offset_<p|n><days>d/*.json under a directory,
into the ledger. The path defaults to results_dir. A file's offset comes from
its path unless --offset-days is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			store, resultsDir, err := openResults(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			path := resultsDir
			if len(args) == 1 {
				path = sanitize.Path(args[0])
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("results path: %w", err)
			}

			ctx := context.Background()
			var runs []*results.Run
			if info.IsDir() {
				runs, err = store.IngestDir(ctx, path)
			} else {
				var offset *int
				if cmd.Flags().Changed("offset-days") {
					d, _ := cmd.Flags().GetInt("offset-days")
					offset = &d
				}
				var run *results.Run
				run, err = store.Ingest(ctx, path, offset)
				if run != nil {
					runs = append(runs, run)
				}
			}
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ingested %d results file(s)\n", len(runs))
			for _, r := range runs {
				fmt.Fprintf(out, "  %+6dd  %-30s %d simulations  %s\n", r.OffsetDays, r.AgentLLM, r.NumSimulations, filepath.Base(r.Source))
			}
			return nil
		},
	}

	cmd.Flags().Int("offset-days", 0, "Offset of a single results file (default from its path)")
	return cmd
}

func newResultsReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Compare rates across offsets",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			store, _, err := openResults(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			metrics, err := store.Metrics(context.Background())
			if err != nil {
				return err
			}
			summaries := results.Summarize(metrics)

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"runs":    metrics,
					"offsets": summaries,
				})
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No results ingested yet. Run 'timeshift results ingest' first.")
				return nil
			}

			fmt.Fprintf(out, "%12s %12s %10s %10s %10s\n", "Offset", "Avg Reward", "Pass^1", "Success%", "Avg Cost")
			fmt.Fprintln(out, strings.Repeat("-", 58))
			for _, s := range summaries {
				fmt.Fprintf(out, "%+11dd %12.4f %10.4f %9.2f%% $%9.4f\n",
					s.OffsetDays, s.AvgReward, s.PassAt1, s.SuccessRate*100, s.AvgAgentCost)
			}

			var compared bool
			for _, s := range summaries {
				if !s.HasBaseline {
					continue
				}
				if !compared {
					fmt.Fprintln(out, "\nComparison to baseline (offset 0):")
					compared = true
				}
				fmt.Fprintf(out, "  Offset %+dd: %+.4f (%+.1f%%)\n", s.OffsetDays, s.RewardDiff, s.RewardDiffPct)
			}
			return nil
		},
	}
}

func newResultsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export per-run metrics as CSV or XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			output = sanitize.Path(output)
			format, _ := cmd.Flags().GetString("format")
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
			}
			if format != "csv" && format != "xlsx" {
				return fmt.Errorf("unknown export format %q (use csv or xlsx)", format)
			}

			store, _, err := openResults(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			metrics, err := store.Metrics(ctx)
			if err != nil {
				return err
			}

			switch format {
			case "csv":
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				if err := results.WriteCSV(f, metrics); err != nil {
					f.Close()
					return fmt.Errorf("writing csv: %w", err)
				}
				if err := f.Close(); err != nil {
					return err
				}
			case "xlsx":
				tasks, err := store.TaskRates(ctx)
				if err != nil {
					return err
				}
				if err := results.WriteXLSX(output, metrics, tasks); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d runs to %s\n", len(metrics), output)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file (required)")
	cmd.Flags().String("format", "", "csv or xlsx (default from the output extension)")
	cmd.MarkFlagRequired("output")

	return cmd
}
