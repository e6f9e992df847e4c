package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/timeshift/internal/config"
	"github.com/nvandessel/timeshift/internal/dataset"
	"github.com/nvandessel/timeshift/internal/dataset/datasettest"
	"github.com/nvandessel/timeshift/internal/registry"
	"github.com/nvandessel/timeshift/internal/variant"
)

func TestExpand(t *testing.T) {
	p := Params{
		Domain:         "airline_offset_p365d",
		DataDir:        "/data/airline_offset_p365d",
		NumTrials:      3,
		AgentLLM:       "agent-model",
		AgentLLMArgs:   map[string]any{"temperature": 0.5},
		UserLLM:        "user-model",
		MaxSteps:       200,
		MaxErrors:      10,
		MaxConcurrency: 5,
		Seed:           42,
		SaveTo:         "/results/out",
	}

	tests := []struct {
		name     string
		template []string
		numTasks int
		want     string
		wantErr  bool
	}{
		{
			name:     "all placeholders",
			template: []string{"tau2", "run", "--domain", "{domain}", "--num-trials", "{num_trials}", "--agent-llm-args", "{agent_llm_args}", "--user-llm-args", "{user_llm_args}", "--save-to", "{save_to}"},
			want:     `tau2 run --domain airline_offset_p365d --num-trials 3 --agent-llm-args {"temperature":0.5} --user-llm-args {} --save-to /results/out`,
		},
		{
			name:     "num tasks zero drops flag",
			template: []string{"tau2", "--num-tasks", "{num_tasks}", "--seed", "{seed}"},
			want:     "tau2 --seed 42",
		},
		{
			name:     "num tasks set",
			template: []string{"tau2", "--num-tasks", "{num_tasks}"},
			numTasks: 5,
			want:     "tau2 --num-tasks 5",
		},
		{
			name:     "embedded placeholder",
			template: []string{"sh", "-c", "cd {data_dir} && run --steps={max_steps}"},
			want:     "sh -c cd /data/airline_offset_p365d && run --steps=200",
		},
		{
			name:     "unknown placeholder",
			template: []string{"tau2", "{nope}"},
			wantErr:  true,
		},
		{
			name:    "empty template",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := p
			pp.NumTasks = tt.numTasks
			got, err := Expand(tt.template, pp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if s := strings.Join(got, " "); s != tt.want {
				t.Errorf("Expand() = %s\nwant %s", s, tt.want)
			}
		})
	}
}

type fakeExec struct {
	calls []Command
	fail  error
}

func (f *fakeExec) run(_ context.Context, c Command) error {
	f.calls = append(f.calls, c)
	return f.fail
}

func setup(t *testing.T, offsets ...int) (*config.Config, *registry.Registry) {
	t.Helper()
	root := t.TempDir()
	datasettest.WriteAirline(t, variant.Dir(root, "airline"))
	g := &variant.Generator{DataRoot: root, Domain: "airline", BaseYear: datasettest.BaseYear}
	for _, d := range offsets {
		if _, err := g.Generate(d, false); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Default()
	cfg.DataRoot = root
	cfg.ResultsDir = filepath.Join(root, "results")
	cfg.Run.Command = []string{"tau2", "run", "--domain", "{domain}", "--save-to", "{save_to}"}
	cfg.Run.Env = map[string]string{"TIMESHIFT_TEST": "yes"}

	reg := registry.New()
	if err := registry.RegisterDomain(reg, root, "airline", cfg.CurrentTime); err != nil {
		t.Fatal(err)
	}
	return cfg, reg
}

func TestRun_ExecutesEachOffset(t *testing.T) {
	cfg, reg := setup(t, 365)
	fe := &fakeExec{}
	r := &Runner{Config: cfg, Registry: reg, Exec: fe.run}

	runs, err := r.Run(context.Background(), []int{0, 365})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(fe.calls) != 2 || len(runs) != 2 {
		t.Fatalf("calls = %d, runs = %d, want 2", len(fe.calls), len(runs))
	}

	wantSave := filepath.Join(cfg.ResultsDir, "offset_p365d", "claude-sonnet-4-20250514_airline_offset_p365d_3trials")
	if runs[1].SaveTo != wantSave {
		t.Errorf("SaveTo = %s, want %s", runs[1].SaveTo, wantSave)
	}
	if runs[1].ResultFile != wantSave+".json" {
		t.Errorf("ResultFile = %s", runs[1].ResultFile)
	}
	if got := strings.Join(fe.calls[1].Args, " "); got != "tau2 run --domain airline_offset_p365d --save-to "+wantSave {
		t.Errorf("args = %s", got)
	}
	if runs[0].Validation != nil {
		t.Error("source offset should not be validated")
	}
	if runs[1].Validation == nil || !runs[1].Validation.Passed {
		t.Errorf("validation = %+v", runs[1].Validation)
	}
	if !runs[1].Executed {
		t.Error("Executed = false")
	}
	if _, err := os.Stat(filepath.Dir(wantSave)); err != nil {
		t.Errorf("results dir not created: %v", err)
	}

	var found bool
	for _, kv := range fe.calls[0].Env {
		if kv == "TIMESHIFT_TEST=yes" {
			found = true
		}
	}
	if !found {
		t.Error("config env not passed to the command")
	}
}

func TestRun_NotGenerated(t *testing.T) {
	cfg, reg := setup(t)
	fe := &fakeExec{}
	r := &Runner{Config: cfg, Registry: reg, Exec: fe.run}

	_, err := r.Run(context.Background(), []int{0, 730})
	if !errors.Is(err, ErrNotGenerated) {
		t.Fatalf("Run() error = %v, want ErrNotGenerated", err)
	}
	if !strings.Contains(err.Error(), "generate --offset-days 730") {
		t.Errorf("error lacks hint: %v", err)
	}
	if len(fe.calls) != 0 {
		t.Errorf("executed %d commands before failing", len(fe.calls))
	}
}

func TestRun_ValidationGate(t *testing.T) {
	cfg, reg := setup(t, 365)

	// Put the source tasks back into the variant so flight dates go stale.
	src, err := dataset.ReadJSONFile(filepath.Join(variant.Dir(cfg.DataRoot, "airline"), dataset.TasksFile))
	if err != nil {
		t.Fatal(err)
	}
	if err := dataset.WriteJSONFile(filepath.Join(variant.Dir(cfg.DataRoot, "airline_offset_p365d"), dataset.TasksFile), src); err != nil {
		t.Fatal(err)
	}

	fe := &fakeExec{}
	r := &Runner{Config: cfg, Registry: reg, Exec: fe.run}
	if _, err := r.Run(context.Background(), []int{365}); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("Run() error = %v, want ErrValidationFailed", err)
	}
	if len(fe.calls) != 0 {
		t.Fatal("command ran despite failed validation")
	}

	r.OverrideValidation = true
	runs, err := r.Run(context.Background(), []int{365})
	if err != nil {
		t.Fatalf("Run() with override error = %v", err)
	}
	if len(fe.calls) != 1 || runs[0].Validation.Passed {
		t.Errorf("calls = %d, validation passed = %v", len(fe.calls), runs[0].Validation.Passed)
	}
}

func TestRun_DryRun(t *testing.T) {
	cfg, reg := setup(t, -365)
	fe := &fakeExec{}
	r := &Runner{Config: cfg, Registry: reg, Exec: fe.run, DryRun: true}

	runs, err := r.Run(context.Background(), []int{-365})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(fe.calls) != 0 {
		t.Error("dry run executed a command")
	}
	if runs[0].Executed || len(runs[0].Args) == 0 {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestRun_StopsOnFailure(t *testing.T) {
	cfg, reg := setup(t, 365)
	fe := &fakeExec{fail: errors.New("exit status 1")}
	r := &Runner{Config: cfg, Registry: reg, Exec: fe.run}

	_, err := r.Run(context.Background(), []int{0, 365})
	if err == nil || !strings.Contains(err.Error(), "offset +0") {
		t.Fatalf("Run() error = %v", err)
	}
	if len(fe.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(fe.calls))
	}
}

func TestRun_EnvFile(t *testing.T) {
	cfg, reg := setup(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("TIMESHIFT_KEY=from-file\nTIMESHIFT_TEST=file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.Run.EnvFile = envFile

	fe := &fakeExec{}
	r := &Runner{Config: cfg, Registry: reg, Exec: fe.run}
	if _, err := r.Run(context.Background(), []int{0}); err != nil {
		t.Fatal(err)
	}

	env := strings.Join(fe.calls[0].Env, "\n")
	if !strings.Contains(env, "TIMESHIFT_KEY=from-file") {
		t.Error("env file value missing")
	}
	if !strings.Contains(env, "TIMESHIFT_TEST=yes") || strings.Contains(env, "TIMESHIFT_TEST=file") {
		t.Error("config env should override the env file")
	}

	cfg.Run.EnvFile = filepath.Join(t.TempDir(), "missing.env")
	if _, err := r.Run(context.Background(), []int{0}); err == nil {
		t.Error("missing env file should be an error")
	}
}

func TestRun_ModelNameIsOnePathElement(t *testing.T) {
	cfg, reg := setup(t)
	cfg.Run.AgentLLM = "openrouter/anthropic/claude"
	r := &Runner{Config: cfg, Registry: reg, DryRun: true}

	runs, err := r.Run(context.Background(), []int{0})
	if err != nil {
		t.Fatal(err)
	}
	if got := filepath.Base(runs[0].SaveTo); got != "openrouter_anthropic_claude_airline_3trials" {
		t.Errorf("save name = %s", got)
	}
	if got := filepath.Dir(runs[0].SaveTo); got != filepath.Join(cfg.ResultsDir, "offset_p0d") {
		t.Errorf("save dir = %s", got)
	}
}
