package variant

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/timeshift/internal/dates"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the companion record written into every variant.
const ManifestFile = "variant.yaml"

// maxSamples caps the soft-fail samples kept in a manifest.
const maxSamples = 10

// Manifest describes a generated variant. It holds no wall-clock fields so
// regenerating the same offset yields the same bytes.
type Manifest struct {
	Name        string `yaml:"name" json:"name"`
	Domain      string `yaml:"domain" json:"domain"`
	OffsetDays  int    `yaml:"offset_days" json:"offset_days"`
	BaseYear    int    `yaml:"base_year" json:"base_year"`
	Source      string `yaml:"source" json:"source"`
	CurrentTime string `yaml:"current_time" json:"current_time"`
	Paths       Paths  `yaml:"paths" json:"paths"`

	SoftFailCount int              `yaml:"soft_fail_count" json:"soft_fail_count"`
	SoftFails     []dates.SoftFail `yaml:"soft_fails,omitempty" json:"soft_fails,omitempty"`
}

// Paths are the data files of a variant, relative to its directory.
type Paths struct {
	DB         string `yaml:"db" json:"db"`
	Tasks      string `yaml:"tasks" json:"tasks"`
	Policy     string `yaml:"policy" json:"policy"`
	SplitTasks string `yaml:"split_tasks,omitempty" json:"split_tasks,omitempty"`
}

// WriteManifest writes m as variant.yaml into dir.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads variant.yaml from dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", filepath.Join(dir, ManifestFile), err)
	}
	return &m, nil
}
