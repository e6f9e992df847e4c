// Package config loads the experiment configuration from timeshift.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/timeshift/internal/dates"
	"github.com/nvandessel/timeshift/internal/variant"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the project root.
const FileName = "timeshift.yaml"

// Config holds all experiment settings.
type Config struct {
	// DataRoot contains tau2/domains/<source_domain> and the generated
	// variants. Relative paths resolve against the project root.
	DataRoot string `yaml:"data_root" json:"data_root"`

	// SourceDomain is the unshifted domain, e.g. "airline".
	SourceDomain string `yaml:"source_domain" json:"source_domain"`

	// BaseYear resolves year-less text dates in the source.
	BaseYear int `yaml:"base_year" json:"base_year"`

	// CurrentTime is the source policy's current-time sentinel value.
	CurrentTime string `yaml:"current_time" json:"current_time"`

	// FlightDateMinYear separates flight dates from older dates in task
	// arguments; it is shifted together with each variant.
	FlightDateMinYear int `yaml:"flight_date_min_year" json:"flight_date_min_year"`

	// Offsets are the day offsets of one experiment. Zero is the source.
	Offsets []int `yaml:"offsets" json:"offsets"`

	// ResultsDir receives one offset_<p|n><days>d directory per offset.
	ResultsDir string `yaml:"results_dir" json:"results_dir"`

	// ResultsDB is the SQLite ledger of ingested simulations.
	ResultsDB string `yaml:"results_db" json:"results_db"`

	Run RunConfig `yaml:"run" json:"run"`
}

// RunConfig configures the external evaluation framework invocation.
type RunConfig struct {
	// Command is the command template; see runner for placeholders.
	Command []string `yaml:"command" json:"command"`

	// EnvFile is an optional dotenv file merged into the environment.
	EnvFile string `yaml:"env_file" json:"env_file"`

	NumTrials      int               `yaml:"num_trials" json:"num_trials"`
	NumTasks       int               `yaml:"num_tasks" json:"num_tasks"` // 0 means all tasks
	AgentLLM       string            `yaml:"agent_llm" json:"agent_llm"`
	AgentLLMArgs   map[string]any    `yaml:"agent_llm_args" json:"agent_llm_args"`
	UserLLM        string            `yaml:"user_llm" json:"user_llm"`
	UserLLMArgs    map[string]any    `yaml:"user_llm_args" json:"user_llm_args"`
	MaxSteps       int               `yaml:"max_steps" json:"max_steps"`
	MaxErrors      int               `yaml:"max_errors" json:"max_errors"`
	MaxConcurrency int               `yaml:"max_concurrency" json:"max_concurrency"`
	Seed           int               `yaml:"seed" json:"seed"`
	Env            map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Default returns the configuration of the airline experiment.
func Default() *Config {
	return &Config{
		DataRoot:          "data",
		SourceDomain:      "airline",
		BaseYear:          2024,
		CurrentTime:       "2024-05-15T15:00:00",
		FlightDateMinYear: 2020,
		Offsets:           []int{-365, 0, 365, 1825},
		ResultsDir:        filepath.Join("data", "simulations", "time_ablation"),
		ResultsDB:         filepath.Join("data", "simulations", "time_ablation", "results.db"),
		Run: RunConfig{
			Command: []string{
				"tau2", "run",
				"--domain", "{domain}",
				"--num-trials", "{num_trials}",
				"--num-tasks", "{num_tasks}",
				"--agent-llm", "{agent_llm}",
				"--agent-llm-args", "{agent_llm_args}",
				"--user-llm", "{user_llm}",
				"--user-llm-args", "{user_llm_args}",
				"--max-steps", "{max_steps}",
				"--max-errors", "{max_errors}",
				"--max-concurrency", "{max_concurrency}",
				"--seed", "{seed}",
				"--save-to", "{save_to}",
			},
			NumTrials:      3,
			AgentLLM:       "claude-sonnet-4-20250514",
			AgentLLMArgs:   map[string]any{},
			UserLLM:        "gpt-4.1",
			UserLLMArgs:    map[string]any{"temperature": 0.0},
			MaxSteps:       200,
			MaxErrors:      10,
			MaxConcurrency: 5,
			Seed:           42,
		},
	}
}

// Load reads FileName from root. A missing file yields Default().
func Load(root string) (*Config, error) {
	cfg, err := LoadFromFile(filepath.Join(root, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFromFile reads the config at path over the defaults, so a file only
// needs the keys it changes.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that generation and runs depend on.
func (c *Config) Validate() error {
	var errs []error
	if c.SourceDomain == "" {
		errs = append(errs, errors.New("source_domain is required"))
	}
	if c.BaseYear < 1 || c.BaseYear > 9999 {
		errs = append(errs, fmt.Errorf("base_year %d is out of range", c.BaseYear))
	}
	if !dates.IsISOTimestamp(c.CurrentTime) {
		errs = append(errs, fmt.Errorf("current_time %q is not YYYY-MM-DDTHH:MM:SS", c.CurrentTime))
	}
	if c.FlightDateMinYear < 1 || c.FlightDateMinYear > 9999 {
		errs = append(errs, fmt.Errorf("flight_date_min_year %d is out of range", c.FlightDateMinYear))
	}
	for _, d := range c.Offsets {
		if d == 0 {
			continue
		}
		if err := variant.CheckOffset(d); err != nil {
			errs = append(errs, fmt.Errorf("offsets: %w", err))
		}
	}
	if c.Run.NumTrials < 1 {
		errs = append(errs, errors.New("run.num_trials must be at least 1"))
	}
	if c.Run.NumTasks < 0 {
		errs = append(errs, errors.New("run.num_tasks must not be negative"))
	}
	if c.Run.MaxConcurrency < 1 {
		errs = append(errs, errors.New("run.max_concurrency must be at least 1"))
	}
	return errors.Join(errs...)
}

// Resolve makes the relative paths of c absolute against root.
func (c *Config) Resolve(root string) {
	c.DataRoot = resolve(root, c.DataRoot)
	c.ResultsDir = resolve(root, c.ResultsDir)
	c.ResultsDB = resolve(root, c.ResultsDB)
	if c.Run.EnvFile != "" {
		c.Run.EnvFile = resolve(root, c.Run.EnvFile)
	}
}

func resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// Open loads the config for a project root, from path when given and from
// root/FileName otherwise, and resolves its paths against root.
func Open(root, path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path != "" {
		cfg, err = LoadFromFile(path)
	} else {
		cfg, err = Load(root)
	}
	if err != nil {
		return nil, err
	}
	cfg.Resolve(root)
	return cfg, nil
}
