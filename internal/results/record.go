// Package results ingests simulation records written by the evaluation
// framework into a SQLite ledger and reports per-offset rates.
package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SuccessThreshold is the reward above which a simulation counts as a
// success.
const SuccessThreshold = 0.99

// File is the subset of a framework results file the ledger needs.
type File struct {
	Info        Info         `json:"info"`
	Tasks       []Task       `json:"tasks"`
	Simulations []Simulation `json:"simulations"`
}

// Info describes the run that produced a results file.
type Info struct {
	NumTrials int `json:"num_trials"`
	AgentInfo struct {
		LLM string `json:"llm"`
	} `json:"agent_info"`
}

// Task identifies one task of the run.
type Task struct {
	ID TaskID `json:"id"`
}

// Simulation is one trial of one task.
type Simulation struct {
	TaskID     TaskID  `json:"task_id"`
	Trial      int     `json:"trial"`
	AgentCost  float64 `json:"agent_cost"`
	RewardInfo struct {
		Reward float64 `json:"reward"`
	} `json:"reward_info"`
}

// TaskID accepts both string and numeric ids.
type TaskID string

func (id *TaskID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = TaskID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	*id = TaskID(n.String())
	return nil
}

// LoadFile reads a framework results file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if len(f.Simulations) == 0 {
		return nil, fmt.Errorf("%s: no simulations", filepath.Base(path))
	}
	return &f, nil
}

// AgentLLM is the agent model name, or "unknown".
func (f *File) AgentLLM() string {
	if f.Info.AgentInfo.LLM == "" {
		return "unknown"
	}
	return f.Info.AgentInfo.LLM
}

// NumTasks counts the tasks of the run, falling back to the distinct
// task ids among the simulations.
func (f *File) NumTasks() int {
	if len(f.Tasks) > 0 {
		return len(f.Tasks)
	}
	seen := map[TaskID]bool{}
	for _, s := range f.Simulations {
		seen[s.TaskID] = true
	}
	return len(seen)
}

// NumTrials is the configured trial count, falling back to the highest
// trial index seen plus one.
func (f *File) NumTrials() int {
	if f.Info.NumTrials > 0 {
		return f.Info.NumTrials
	}
	n := 0
	for _, s := range f.Simulations {
		if s.Trial+1 > n {
			n = s.Trial + 1
		}
	}
	return n
}

func (id TaskID) String() string { return string(id) }
