package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvandessel/timeshift/internal/dataset"
	"github.com/nvandessel/timeshift/internal/variant"
)

// DirProvider serves a domain straight from its data directory.
type DirProvider struct {
	name        string
	dir         string
	currentTime string
	paths       variant.Paths
}

// FromDir serves the unshifted source domain in dir.
func FromDir(name, dir, currentTime string) *DirProvider {
	return &DirProvider{
		name:        name,
		dir:         dir,
		currentTime: currentTime,
		paths: variant.Paths{
			DB:         dataset.DBFile,
			Tasks:      dataset.TasksFile,
			Policy:     dataset.PolicyFile,
			SplitTasks: dataset.SplitTasksFile,
		},
	}
}

// FromManifest serves the generated variant in dir, as described by its
// variant.yaml.
func FromManifest(dir string) (*DirProvider, error) {
	m, err := variant.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	return &DirProvider{name: m.Name, dir: dir, currentTime: m.CurrentTime, paths: m.Paths}, nil
}

// Name is the domain name.
func (p *DirProvider) Name() string { return p.name }

// Dir is the data directory.
func (p *DirProvider) Dir() string { return p.dir }

// Environment loads the world and policy.
func (p *DirProvider) Environment() (*Environment, error) {
	v, err := dataset.ReadJSONFile(filepath.Join(p.dir, p.paths.DB))
	if err != nil {
		return nil, err
	}
	db, ok := dataset.Object(v)
	if !ok {
		return nil, fmt.Errorf("%s: top level is not an object", p.paths.DB)
	}
	policy, err := os.ReadFile(filepath.Join(p.dir, p.paths.Policy))
	if err != nil {
		return nil, fmt.Errorf("reading policy: %w", err)
	}
	return &Environment{
		Name:        p.name,
		DataDir:     p.dir,
		Policy:      string(policy),
		DB:          db,
		CurrentTime: p.currentTime,
	}, nil
}

// Tasks returns the tasks of split, or all tasks when split is empty.
func (p *DirProvider) Tasks(split string) ([]any, error) {
	v, err := dataset.ReadJSONFile(filepath.Join(p.dir, p.paths.Tasks))
	if err != nil {
		return nil, err
	}
	tasks, ok := dataset.Array(v)
	if !ok {
		return nil, fmt.Errorf("%s: top level is not an array", p.paths.Tasks)
	}
	if split == "" {
		return tasks, nil
	}

	splits, err := p.TaskSplits()
	if err != nil {
		return nil, err
	}
	ids, ok := splits[split]
	if !ok {
		valid := make([]string, 0, len(splits))
		for k := range splits {
			valid = append(valid, k)
		}
		sort.Strings(valid)
		return nil, fmt.Errorf("invalid task split %q, valid splits are: %s", split, strings.Join(valid, ", "))
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []any
	for _, t := range tasks {
		if want[dataset.TaskID(t)] {
			out = append(out, t)
		}
	}
	return out, nil
}

// TaskSplits reads the split index. A domain without one has no splits.
func (p *DirProvider) TaskSplits() (map[string][]string, error) {
	if p.paths.SplitTasks == "" {
		return map[string][]string{}, nil
	}
	data, err := os.ReadFile(filepath.Join(p.dir, p.paths.SplitTasks))
	if os.IsNotExist(err) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading task splits: %w", err)
	}
	var splits map[string][]string
	if err := json.Unmarshal(data, &splits); err != nil {
		return nil, fmt.Errorf("parsing task splits: %w", err)
	}
	return splits, nil
}

// RegisterDomain registers the source domain and every generated variant
// of it found under dataRoot.
func RegisterDomain(r *Registry, dataRoot, domain, currentTime string) error {
	if err := r.Register(domain, FromDir(domain, variant.Dir(dataRoot, domain), currentTime)); err != nil {
		return err
	}
	infos, err := variant.List(dataRoot, domain)
	if err != nil {
		return err
	}
	for _, info := range infos {
		var p *DirProvider
		if info.Manifest != nil {
			p, err = FromManifest(info.Dir)
			if err != nil {
				return err
			}
		} else {
			shifted, err := variantCurrentTime(info.Dir)
			if err != nil {
				slog.Debug("registry: using source current time", "variant", info.Name, "error", err)
				shifted = currentTime
			}
			p = FromDir(info.Name, info.Dir, shifted)
		}
		if err := r.Register(info.Name, p); err != nil {
			return err
		}
	}
	return nil
}

// variantCurrentTime reads the sentinel timestamp from the policy in dir.
func variantCurrentTime(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, dataset.PolicyFile))
	if err != nil {
		return "", err
	}
	return dataset.SentinelTimestamp(string(data))
}
