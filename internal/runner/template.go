package runner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// Params fill the placeholders of a command template.
type Params struct {
	Domain         string
	DataDir        string
	NumTrials      int
	NumTasks       int // 0 means all tasks
	AgentLLM       string
	AgentLLMArgs   map[string]any
	UserLLM        string
	UserLLMArgs    map[string]any
	MaxSteps       int
	MaxErrors      int
	MaxConcurrency int
	Seed           int
	SaveTo         string
}

var rePlaceholder = regexp.MustCompile(`\{([a-z_]+)\}`)

func (p Params) values() (map[string]string, error) {
	agentArgs, err := encodeArgs(p.AgentLLMArgs)
	if err != nil {
		return nil, fmt.Errorf("agent_llm_args: %w", err)
	}
	userArgs, err := encodeArgs(p.UserLLMArgs)
	if err != nil {
		return nil, fmt.Errorf("user_llm_args: %w", err)
	}
	return map[string]string{
		"domain":          p.Domain,
		"data_dir":        p.DataDir,
		"num_trials":      strconv.Itoa(p.NumTrials),
		"num_tasks":       strconv.Itoa(p.NumTasks),
		"agent_llm":       p.AgentLLM,
		"agent_llm_args":  agentArgs,
		"user_llm":        p.UserLLM,
		"user_llm_args":   userArgs,
		"max_steps":       strconv.Itoa(p.MaxSteps),
		"max_errors":      strconv.Itoa(p.MaxErrors),
		"max_concurrency": strconv.Itoa(p.MaxConcurrency),
		"seed":            strconv.Itoa(p.Seed),
		"save_to":         p.SaveTo,
	}, nil
}

func encodeArgs(args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Expand substitutes every {placeholder} in template. When NumTasks is zero
// the "{num_tasks}" element and the flag right before it are dropped, so the
// framework runs all tasks.
func Expand(template []string, p Params) ([]string, error) {
	if len(template) == 0 {
		return nil, fmt.Errorf("empty command template")
	}
	values, err := p.values()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(template))
	for _, arg := range template {
		if arg == "{num_tasks}" && p.NumTasks == 0 {
			if n := len(out); n > 0 && len(out[n-1]) > 0 && out[n-1][0] == '-' {
				out = out[:n-1]
			}
			continue
		}
		var missing string
		expanded := rePlaceholder.ReplaceAllStringFunc(arg, func(m string) string {
			key := m[1 : len(m)-1]
			v, ok := values[key]
			if !ok {
				missing = key
				return m
			}
			return v
		})
		if missing != "" {
			return nil, fmt.Errorf("unknown placeholder {%s} in %q", missing, arg)
		}
		out = append(out, expanded)
	}
	return out, nil
}
