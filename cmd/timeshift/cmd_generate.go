package main

import (
	"fmt"
	"strings"

	"github.com/nvandessel/timeshift/internal/dates"
	"github.com/nvandessel/timeshift/internal/variant"
	"github.com/spf13/cobra"
)

func newGenerator(cmd *cobra.Command) (*variant.Generator, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return &variant.Generator{DataRoot: cfg.DataRoot, Domain: cfg.SourceDomain, BaseYear: cfg.BaseYear}, nil
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one date-shifted variant",
		Long: `Write a copy of the source domain with every date moved by --offset-days.

Examples:
  timeshift generate --offset-days 365
  timeshift generate --offset-days -1825 --force --show-samples`,
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("offset-days")
			force, _ := cmd.Flags().GetBool("force")
			showSamples, _ := cmd.Flags().GetBool("show-samples")
			jsonOut, _ := cmd.Flags().GetBool("json")

			g, err := newGenerator(cmd)
			if err != nil {
				return err
			}
			result, err := g.Generate(days, force)
			if err != nil {
				return fmt.Errorf("generate failed: %w", err)
			}

			var samples []variant.Sample
			if showSamples {
				samples, err = g.Samples(days, 3)
				if err != nil {
					return err
				}
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"variant": result,
					"samples": samples,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %s (%+d days)\n", result.Name, days)
			fmt.Fprintf(out, "  Path: %s\n", result.Dir)
			if n := result.Manifest.SoftFailCount; n > 0 {
				fmt.Fprintf(out, "  Unchanged literals: %d (see %s)\n", n, variant.ManifestFile)
			}
			if showSamples {
				printSamples(cmd, days, samples)
			}
			return nil
		},
	}

	cmd.Flags().Int("offset-days", 0, "Signed number of days to shift by (required)")
	cmd.Flags().Bool("force", false, "Replace the variant if it already exists")
	cmd.Flags().Bool("show-samples", false, "Print sample flight and policy transformations")
	cmd.MarkFlagRequired("offset-days")

	return cmd
}

func printSamples(cmd *cobra.Command, days int, samples []variant.Sample) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nSample transformations (%+d days):\n", days)
	for _, s := range samples {
		pairs := make([]string, len(s.Before))
		for i := range s.Before {
			pairs[i] = s.Before[i] + " -> " + s.After[i]
		}
		switch s.Kind {
		case "flight":
			fmt.Fprintf(out, "  Flight %s: %s\n", s.Label, strings.Join(pairs, ", "))
		default:
			fmt.Fprintf(out, "  Policy %s: %s\n", s.Label, strings.Join(pairs, ", "))
		}
	}
}

func newGenerateAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-all",
		Short: "Generate the variants for every configured offset",
		Long: `Generate one variant per offset. Offsets default to the config's offsets
list; offset 0 is the source and is skipped.

Examples:
  timeshift generate-all
  timeshift generate-all --offsets -365,365,1825 --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			offsets := cfg.Offsets
			if cmd.Flags().Changed("offsets") {
				offsets, _ = cmd.Flags().GetIntSlice("offsets")
			}

			g := &variant.Generator{DataRoot: cfg.DataRoot, Domain: cfg.SourceDomain, BaseYear: cfg.BaseYear}
			results, err := g.GenerateAll(offsets, force)

			if jsonOut {
				if jerr := writeJSON(cmd, results); jerr != nil {
					return jerr
				}
			} else {
				for _, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", r.Name)
				}
			}
			if err != nil {
				return fmt.Errorf("generate-all failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntSlice("offsets", nil, "Comma-separated offsets in days (default from config)")
	cmd.Flags().Bool("force", false, "Replace variants that already exist")

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List generated variants",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			infos, err := variant.List(cfg.DataRoot, cfg.SourceDomain)
			if err != nil {
				return err
			}

			if jsonOut {
				if infos == nil {
					infos = []variant.Info{}
				}
				return writeJSON(cmd, infos)
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintf(out, "No variants of %s generated yet.\n", cfg.SourceDomain)
				fmt.Fprintln(out, "Run 'timeshift generate --offset-days N' to create one.")
				return nil
			}
			fmt.Fprintf(out, "Variants of %s (%d):\n\n", cfg.SourceDomain, len(infos))
			for _, info := range infos {
				line := fmt.Sprintf("  %-28s %+7dd", info.Name, info.OffsetDays)
				if info.Manifest != nil && info.Manifest.SoftFailCount > 0 {
					line += fmt.Sprintf("  (%d unchanged literals)", info.Manifest.SoftFailCount)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newShiftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shift <text>...",
		Short: "Shift the dates in a piece of text",
		Long: `Shift every date literal in the given text and print the result.

Examples:
  timeshift shift --offset-days 365 "Fly on May 15, return 2024-06-01"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("offset-days")
			baseYear, _ := cmd.Flags().GetInt("base-year")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if !cmd.Flags().Changed("base-year") {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				baseYear = cfg.BaseYear
			}

			sh := dates.NewShifter(dates.OffsetSpec{Days: days, BaseYear: baseYear})
			text := strings.Join(args, " ")
			shifted := sh.Text(text)

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"input":      text,
					"output":     shifted,
					"soft_fails": sh.SoftFails(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), shifted)
			for _, f := range sh.SoftFails() {
				fmt.Fprintf(cmd.ErrOrStderr(), "unchanged: %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().Int("offset-days", 0, "Signed number of days to shift by (required)")
	cmd.Flags().Int("base-year", 0, "Year for dates written without one (default from config)")
	cmd.MarkFlagRequired("offset-days")

	return cmd
}
