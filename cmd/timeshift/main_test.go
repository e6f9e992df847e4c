package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/timeshift/internal/dataset/datasettest"
	"github.com/nvandessel/timeshift/internal/variant"
	"github.com/spf13/cobra"
)

// newTestRootCmd creates a root command with persistent flags for testing subcommands
func newTestRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "timeshift",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "Debug logging")
	return rootCmd
}

// execute runs cmd under a fresh test root and returns its stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(cmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// newProject lays out a project root with the airline source domain under
// the default data root.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	datasettest.WriteAirline(t, variant.Dir(filepath.Join(root, "data"), "airline"))
	return root
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	want := []string{"generate", "generate-all", "list", "mcp-server", "results", "run", "shift", "validate", "validate-all", "version"}
	for _, name := range want {
		if c, _, err := cmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("missing subcommand %q", name)
		}
	}
	for _, flag := range []string{"json", "root", "config", "verbose"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, newVersionCmd(), "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}
}

func TestGenerateCmd(t *testing.T) {
	root := newProject(t)

	out, err := execute(t, newGenerateCmd(), "generate", "--offset-days", "365", "--show-samples", "--root", root)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	for _, want := range []string{
		"Generated airline_offset_p365d (+365 days)",
		"Flight AA100: 2024-05-15 -> 2025-05-15, 2024-05-16 -> 2025-05-16",
		"Policy current time: 2024-05-15 15:00:00 -> 2025-05-15 15:00:00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, newGenerateCmd(), "generate", "--offset-days", "365", "--root", root); err == nil {
		t.Error("regenerating without --force should fail")
	}
	if _, err := execute(t, newGenerateCmd(), "generate", "--offset-days", "365", "--force", "--root", root); err != nil {
		t.Errorf("generate --force failed: %v", err)
	}
	if _, err := execute(t, newGenerateCmd(), "generate", "--offset-days", "0", "--root", root); err == nil {
		t.Error("offset 0 should be rejected")
	}
}

func TestGenerateAllListValidateAll(t *testing.T) {
	root := newProject(t)

	if _, err := execute(t, newGenerateAllCmd(), "generate-all", "--offsets", "-365,0,1825", "--root", root); err != nil {
		t.Fatalf("generate-all failed: %v", err)
	}

	out, err := execute(t, newListCmd(), "list", "--json", "--root", root)
	if err != nil {
		t.Fatal(err)
	}
	var infos []variant.Info
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("list output is not JSON: %v", err)
	}
	if len(infos) != 2 || infos[0].OffsetDays != -365 || infos[1].OffsetDays != 1825 {
		t.Errorf("list = %+v", infos)
	}

	out, err = execute(t, newValidateAllCmd(), "validate-all", "--root", root)
	if err != nil {
		t.Fatalf("validate-all failed: %v\n%s", err, out)
	}
	if strings.Count(out, "PASSED") != 2 {
		t.Errorf("validate-all output:\n%s", out)
	}
}

func TestValidateCmd(t *testing.T) {
	root := newProject(t)
	if _, err := execute(t, newGenerateCmd(), "generate", "--offset-days", "-365", "--root", root); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, newValidateCmd(), "validate", "--offset-days", "-365", "--root", root)
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "airline_offset_n365d (-365 days): PASSED") {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, newValidateCmd(), "validate", "--offset-days", "730", "--root", root)
	if err == nil {
		t.Fatal("validating a missing variant should fail")
	}
	if !strings.Contains(out, "Data directory does not exist") {
		t.Errorf("output = %q", out)
	}
}

func TestShiftCmd(t *testing.T) {
	out, err := execute(t, newShiftCmd(), "shift", "--offset-days", "1", "--root", t.TempDir(), "Fly", "May 15,", "back 2024-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Fly May 16, back 2024-06-02\n" {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, newShiftCmd(), "shift", "--offset-days", "1", "--base-year", "2023", "--root", t.TempDir(), "Feb 28")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Mar 1\n" {
		t.Errorf("base year 2023 output = %q", out)
	}
}

func TestRunCmd_DryRun(t *testing.T) {
	root := newProject(t)
	if _, err := execute(t, newGenerateCmd(), "generate", "--offset-days", "365", "--root", root); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, newRunCmd(), "run", "--dry-run", "--offsets", "0,365", "--num-tasks", "5", "--root", root)
	if err != nil {
		t.Fatalf("run --dry-run failed: %v", err)
	}
	for _, want := range []string{
		"--domain airline_offset_p365d",
		"--num-tasks 5",
		filepath.Join("offset_p365d", "claude-sonnet-4-20250514_airline_offset_p365d_3trials_5tasks.json"),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, newRunCmd(), "run", "--dry-run", "--offsets", "730", "--root", root); err == nil {
		t.Error("running an ungenerated offset should fail")
	}
}

func TestResultsCmds(t *testing.T) {
	root := newProject(t)
	dir := filepath.Join(root, "data", "simulations", "time_ablation", "offset_p365d")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	run := `{"info": {"num_trials": 1, "agent_info": {"llm": "agent-model"}},
	  "simulations": [
	    {"task_id": "0", "trial": 0, "reward_info": {"reward": 1.0}, "agent_cost": 0.5},
	    {"task_id": "1", "trial": 0, "reward_info": {"reward": 0.0}, "agent_cost": 0.5}
	  ]}`
	if err := os.WriteFile(filepath.Join(dir, "run.json"), []byte(run), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, newResultsCmd(), "results", "ingest", "--root", root)
	if err != nil {
		t.Fatalf("results ingest failed: %v", err)
	}
	if !strings.Contains(out, "Ingested 1 results file(s)") {
		t.Errorf("ingest output = %q", out)
	}

	out, err = execute(t, newResultsCmd(), "results", "report", "--root", root)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "+365d") || !strings.Contains(out, "0.5000") {
		t.Errorf("report output:\n%s", out)
	}

	csvPath := filepath.Join(t.TempDir(), "metrics.csv")
	if _, err := execute(t, newResultsCmd(), "results", "export", "--output", csvPath, "--root", root); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "365,agent-model,2,2,1,0.5,0.5,0.5,0.5") {
		t.Errorf("csv = %s", data)
	}

	if _, err := execute(t, newResultsCmd(), "results", "export", "--output", filepath.Join(t.TempDir(), "out.txt"), "--root", root); err == nil {
		t.Error("unknown export format should fail")
	}
}
