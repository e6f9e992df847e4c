// Package runner hands validated variants to the external evaluation
// framework, one offset at a time.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nvandessel/timeshift/internal/config"
	"github.com/nvandessel/timeshift/internal/registry"
	"github.com/nvandessel/timeshift/internal/sanitize"
	"github.com/nvandessel/timeshift/internal/validate"
	"github.com/nvandessel/timeshift/internal/variant"
)

var (
	// ErrValidationFailed stops a run whose variant does not validate.
	ErrValidationFailed = errors.New("variant failed validation")

	// ErrNotGenerated is returned for offsets without a generated variant.
	ErrNotGenerated = errors.New("variant has not been generated")
)

// Command is one process invocation.
type Command struct {
	Args   []string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// ExecFunc runs a command to completion.
type ExecFunc func(ctx context.Context, c Command) error

// Runner runs the evaluation framework for a list of offsets.
type Runner struct {
	Config   *config.Config
	Registry *registry.Registry

	// OverrideValidation runs variants even when validation fails.
	OverrideValidation bool

	// DryRun expands and reports commands without executing them.
	DryRun bool

	// Exec runs commands; nil uses os/exec.
	Exec ExecFunc

	Stdout io.Writer
	Stderr io.Writer
}

// OffsetRun reports one offset of a run.
type OffsetRun struct {
	OffsetDays int              `json:"offset_days"`
	Domain     string           `json:"domain"`
	Args       []string         `json:"args"`
	SaveTo     string           `json:"save_to"`
	ResultFile string           `json:"result_file"`
	Validation *validate.Result `json:"validation,omitempty"`
	Executed   bool             `json:"executed"`
}

// Run checks every offset first (generated, and validated unless
// overridden) and then executes them in order. It stops at the first
// failing command.
func (r *Runner) Run(ctx context.Context, offsets []int) ([]OffsetRun, error) {
	plans := make([]OffsetRun, 0, len(offsets))

	for _, d := range offsets {
		plan, err := r.plan(d)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	env, err := r.environ()
	if err != nil {
		return nil, err
	}

	for i := range plans {
		plan := &plans[i]
		slog.Info("run: offset", "n", i+1, "of", len(plans), "offset_days", plan.OffsetDays, "domain", plan.Domain)

		if r.DryRun {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(plan.SaveTo), 0755); err != nil {
			return plans, fmt.Errorf("creating results directory: %w", err)
		}
		if err := r.exec()(ctx, Command{Args: plan.Args, Env: env, Stdout: r.Stdout, Stderr: r.Stderr}); err != nil {
			return plans, fmt.Errorf("offset %+d: %w", plan.OffsetDays, err)
		}
		plan.Executed = true
		slog.Info("run: completed", "offset_days", plan.OffsetDays, "result", plan.ResultFile)
	}

	return plans, nil
}

func (r *Runner) plan(days int) (OffsetRun, error) {
	cfg := r.Config
	name := variant.Name(cfg.SourceDomain, days)

	p, err := r.Registry.Lookup(name)
	if err != nil {
		return OffsetRun{}, fmt.Errorf("%w: %s (run: timeshift generate --offset-days %d)", ErrNotGenerated, name, days)
	}
	env, err := p.Environment()
	if err != nil {
		return OffsetRun{}, fmt.Errorf("loading %s: %w", name, err)
	}

	plan := OffsetRun{OffsetDays: days, Domain: name}
	if days != 0 {
		res := validate.Dir(env.DataDir, validate.Options{
			OffsetDays:        days,
			BaseYear:          cfg.BaseYear,
			BaseCurrentTime:   cfg.CurrentTime,
			FlightDateMinYear: cfg.FlightDateMinYear,
		})
		plan.Validation = res
		if !res.Passed {
			if !r.OverrideValidation {
				return OffsetRun{}, fmt.Errorf("%w: %s has %d error(s), first: %s", ErrValidationFailed, name, len(res.Errors), res.Errors[0])
			}
			slog.Warn("run: validation failed, continuing on override", "domain", name, "errors", len(res.Errors))
		}
	}

	plan.SaveTo = filepath.Join(cfg.ResultsDir, variant.Suffix(days), saveName(cfg, name))
	plan.ResultFile = plan.SaveTo + ".json"
	plan.Args, err = Expand(cfg.Run.Command, Params{
		Domain:         name,
		DataDir:        env.DataDir,
		NumTrials:      cfg.Run.NumTrials,
		NumTasks:       cfg.Run.NumTasks,
		AgentLLM:       cfg.Run.AgentLLM,
		AgentLLMArgs:   cfg.Run.AgentLLMArgs,
		UserLLM:        cfg.Run.UserLLM,
		UserLLMArgs:    cfg.Run.UserLLMArgs,
		MaxSteps:       cfg.Run.MaxSteps,
		MaxErrors:      cfg.Run.MaxErrors,
		MaxConcurrency: cfg.Run.MaxConcurrency,
		Seed:           cfg.Run.Seed,
		SaveTo:         plan.SaveTo,
	})
	if err != nil {
		return OffsetRun{}, err
	}
	return plan, nil
}

// saveName is <agent_llm>_<domain>_<trials>trials[_<tasks>tasks], with the
// model name flattened into one path element.
func saveName(cfg *config.Config, domain string) string {
	name := sanitize.FileComponent(cfg.Run.AgentLLM) + "_" + domain + "_" + strconv.Itoa(cfg.Run.NumTrials) + "trials"
	if cfg.Run.NumTasks > 0 {
		name += "_" + strconv.Itoa(cfg.Run.NumTasks) + "tasks"
	}
	return name
}

// environ is the process environment, then the dotenv file, then the
// config's env block; later sources win.
func (r *Runner) environ() ([]string, error) {
	merged := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			merged[k] = v
		}
	}
	if f := r.Config.Run.EnvFile; f != "" {
		fileEnv, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", f, err)
		}
		for k, v := range fileEnv {
			merged[k] = v
		}
	}
	for k, v := range r.Config.Run.Env {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out, nil
}

func (r *Runner) exec() ExecFunc {
	if r.Exec != nil {
		return r.Exec
	}
	return execCommand
}

func execCommand(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Env = c.Env
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s interrupted: %w", c.Args[0], ctx.Err())
		}
		return fmt.Errorf("%s failed: %w", c.Args[0], err)
	}
	return nil
}
