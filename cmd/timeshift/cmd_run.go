package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nvandessel/timeshift/internal/registry"
	"github.com/nvandessel/timeshift/internal/runner"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the evaluation framework against each offset",
		Long: `Run the configured evaluation command once per offset. Every variant must
already be generated and must pass validation, unless
--override-validation is given. Offset 0 runs the unshifted source.

Results land in <results_dir>/offset_<p|n><days>d/.

Examples:
  timeshift run
  timeshift run --offsets 0,365 --num-tasks 5 --num-trials 1
  timeshift run --dry-run --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			override, _ := cmd.Flags().GetBool("override-validation")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			offsets := cfg.Offsets
			if cmd.Flags().Changed("offsets") {
				offsets, _ = cmd.Flags().GetIntSlice("offsets")
			}
			if cmd.Flags().Changed("num-trials") {
				cfg.Run.NumTrials, _ = cmd.Flags().GetInt("num-trials")
			}
			if cmd.Flags().Changed("num-tasks") {
				cfg.Run.NumTasks, _ = cmd.Flags().GetInt("num-tasks")
			}
			if cmd.Flags().Changed("agent-llm") {
				cfg.Run.AgentLLM, _ = cmd.Flags().GetString("agent-llm")
			}
			if cmd.Flags().Changed("user-llm") {
				cfg.Run.UserLLM, _ = cmd.Flags().GetString("user-llm")
			}
			if cmd.Flags().Changed("max-concurrency") {
				cfg.Run.MaxConcurrency, _ = cmd.Flags().GetInt("max-concurrency")
			}
			if cmd.Flags().Changed("seed") {
				cfg.Run.Seed, _ = cmd.Flags().GetInt("seed")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			reg := registry.New()
			if err := registry.RegisterDomain(reg, cfg.DataRoot, cfg.SourceDomain, cfg.CurrentTime); err != nil {
				return fmt.Errorf("registering domains: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r := &runner.Runner{
				Config:             cfg,
				Registry:           reg,
				OverrideValidation: override,
				DryRun:             dryRun,
				Stdout:             cmd.ErrOrStderr(),
				Stderr:             cmd.ErrOrStderr(),
			}
			runs, runErr := r.Run(ctx, offsets)

			if jsonOut {
				if err := writeJSON(cmd, runs); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, run := range runs {
					status := "done"
					switch {
					case dryRun:
						status = "dry run"
					case !run.Executed:
						status = "not run"
					}
					fmt.Fprintf(out, "%+6dd  %-28s %s\n", run.OffsetDays, run.Domain, status)
					if dryRun {
						fmt.Fprintf(out, "        %s\n", strings.Join(run.Args, " "))
					}
					fmt.Fprintf(out, "        -> %s\n", run.ResultFile)
				}
			}
			return runErr
		},
	}

	cmd.Flags().IntSlice("offsets", nil, "Comma-separated offsets in days (default from config)")
	cmd.Flags().Int("num-trials", 0, "Trials per task (default from config)")
	cmd.Flags().Int("num-tasks", 0, "Number of tasks, 0 for all (default from config)")
	cmd.Flags().String("agent-llm", "", "Agent model (default from config)")
	cmd.Flags().String("user-llm", "", "User simulator model (default from config)")
	cmd.Flags().Int("max-concurrency", 0, "Concurrent simulations (default from config)")
	cmd.Flags().Int("seed", 0, "Random seed (default from config)")
	cmd.Flags().Bool("override-validation", false, "Run variants even if validation fails")
	cmd.Flags().Bool("dry-run", false, "Print the commands without running them")

	return cmd
}
