package main

import (
	"errors"
	"fmt"

	"github.com/nvandessel/timeshift/internal/config"
	"github.com/nvandessel/timeshift/internal/validate"
	"github.com/nvandessel/timeshift/internal/variant"
	"github.com/spf13/cobra"
)

var errValidationFailed = errors.New("validation failed")

type validationReport struct {
	Name       string           `json:"name"`
	OffsetDays int              `json:"offset_days"`
	Dir        string           `json:"dir"`
	Result     *validate.Result `json:"result"`
}

func validateOffset(cfg *config.Config, days int) validationReport {
	name := variant.Name(cfg.SourceDomain, days)
	dir := variant.Dir(cfg.DataRoot, name)
	return validationReport{
		Name:       name,
		OffsetDays: days,
		Dir:        dir,
		Result: validate.Dir(dir, validate.Options{
			OffsetDays:        days,
			BaseYear:          cfg.BaseYear,
			BaseCurrentTime:   cfg.CurrentTime,
			FlightDateMinYear: cfg.FlightDateMinYear,
		}),
	}
}

func printReport(cmd *cobra.Command, r validationReport) {
	out := cmd.OutOrStdout()
	status := "PASSED"
	if !r.Result.Passed {
		status = "FAILED"
	}
	fmt.Fprintf(out, "%s (%+d days): %s\n", r.Name, r.OffsetDays, status)
	for _, e := range r.Result.Errors {
		fmt.Fprintf(out, "  ERROR: %s\n", e)
	}
	for _, w := range r.Result.Warnings {
		fmt.Fprintf(out, "  WARNING: %s\n", w)
	}
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate one generated variant",
		Long: `Check a variant's internal consistency: task flight dates exist in the
world, dates of birth are plausible relative to the shifted current time,
flight status timestamps agree with their dates, and the policy states the
shifted current time.

Examples:
  timeshift validate --offset-days 365`,
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("offset-days")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			report := validateOffset(cfg, days)

			if jsonOut {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printReport(cmd, report)
			}
			if !report.Result.Passed {
				return fmt.Errorf("%s: %w", report.Name, errValidationFailed)
			}
			return nil
		},
	}

	cmd.Flags().Int("offset-days", 0, "Offset of the variant to validate (required)")
	cmd.MarkFlagRequired("offset-days")

	return cmd
}

func newValidateAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-all",
		Short: "Validate every generated variant",
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

			reports := make([]validationReport, 0, len(infos))
			failed := 0
			for _, info := range infos {
				r := validateOffset(cfg, info.OffsetDays)
				if !r.Result.Passed {
					failed++
				}
				reports = append(reports, r)
			}

			if jsonOut {
				if err := writeJSON(cmd, reports); err != nil {
					return err
				}
			} else {
				if len(reports) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No variants to validate.")
				}
				for _, r := range reports {
					printReport(cmd, r)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d variants: %w", failed, len(reports), errValidationFailed)
			}
			return nil
		},
	}
}
