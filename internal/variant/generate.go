package variant

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nvandessel/timeshift/internal/dataset"
	"github.com/nvandessel/timeshift/internal/dates"
	"github.com/nvandessel/timeshift/internal/transform"
)

// Generator writes shifted variants of one source domain.
type Generator struct {
	// DataRoot holds tau2/domains/<Domain> and receives the variants.
	DataRoot string

	// Domain is the source domain name, e.g. "airline".
	Domain string

	// BaseYear resolves text dates without a year.
	BaseYear int
}

// GenerateResult describes a written variant.
type GenerateResult struct {
	Name     string    `json:"name"`
	Dir      string    `json:"dir"`
	Manifest *Manifest `json:"manifest"`
}

// Generate writes the variant for days. An existing variant is replaced
// only when force is set. Every precondition is checked before anything is
// written; the variant is staged in a temporary sibling directory and
// renamed into place, so a failed run leaves no partial output.
func (g *Generator) Generate(days int, force bool) (*GenerateResult, error) {
	if err := CheckOffset(days); err != nil {
		return nil, err
	}

	name := Name(g.Domain, days)
	dir := Dir(g.DataRoot, name)
	exists, err := dirExists(dir)
	if err != nil {
		return nil, err
	}
	if exists && !force {
		return nil, &ExistsError{Name: name, Dir: dir}
	}

	srcDir := Dir(g.DataRoot, g.Domain)
	src, err := dataset.LoadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("loading source domain %s: %w", g.Domain, err)
	}
	baseTime, err := dataset.SentinelTimestamp(src.Policy)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", dataset.PolicyFile, err)
	}

	slog.Info("generate: shifting dataset", "variant", name, "offset_days", days, "source", srcDir)

	shifter := dates.NewShifter(dates.OffsetSpec{Days: days, BaseYear: g.BaseYear})
	out, err := transform.Dataset(src, shifter)
	if err != nil {
		return nil, fmt.Errorf("transforming %s: %w", name, err)
	}
	currentTime, err := dates.OffsetISOTimestamp(baseTime, days)
	if err != nil {
		return nil, fmt.Errorf("shifting current time: %w", err)
	}

	fails := shifter.SoftFails()
	for _, f := range fails {
		slog.Debug("generate: literal left unchanged", "variant", name, "literal", f.Raw, "where", f.Where, "reason", f.Reason)
	}

	m := &Manifest{
		Name:        name,
		Domain:      g.Domain,
		OffsetDays:  days,
		BaseYear:    g.BaseYear,
		Source:      g.Domain,
		CurrentTime: currentTime,
		Paths: Paths{
			DB:     dataset.DBFile,
			Tasks:  dataset.TasksFile,
			Policy: dataset.PolicyFile,
		},
		SoftFailCount: len(fails),
	}
	if out.SplitTasks != nil {
		m.Paths.SplitTasks = dataset.SplitTasksFile
	}
	if len(fails) > maxSamples {
		fails = fails[:maxSamples]
	}
	m.SoftFails = fails

	if err := g.commit(dir, out, m); err != nil {
		return nil, err
	}

	if m.SoftFailCount > 0 {
		slog.Warn("generate: some literals were left unchanged", "variant", name, "count", m.SoftFailCount)
	}
	slog.Info("generate: wrote variant", "variant", name, "dir", dir, "current_time", currentTime)

	return &GenerateResult{Name: name, Dir: dir, Manifest: m}, nil
}

func (g *Generator) commit(dir string, out *dataset.Dataset, m *Manifest) (err error) {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", parent, err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(staging)
		}
	}()

	if err := os.Chmod(staging, 0755); err != nil {
		return fmt.Errorf("staging directory: %w", err)
	}
	if err := dataset.WriteDir(staging, out); err != nil {
		return err
	}
	if err := WriteManifest(staging, m); err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing previous %s: %w", m.Name, err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return fmt.Errorf("moving %s into place: %w", m.Name, err)
	}
	return nil
}

// GenerateAll generates every non-zero offset in days. Failures are
// collected and do not stop the remaining offsets.
func (g *Generator) GenerateAll(days []int, force bool) ([]*GenerateResult, error) {
	var results []*GenerateResult
	var errs []error
	for _, d := range days {
		if d == 0 {
			continue
		}
		r, err := g.Generate(d, force)
		if err != nil {
			if errors.Is(err, ErrVariantExists) {
				slog.Warn("generate: variant exists, skipping", "offset_days", d)
			} else {
				slog.Error("generate: failed", "offset_days", d, "error", err)
			}
			errs = append(errs, fmt.Errorf("offset %+d: %w", d, err))
			continue
		}
		results = append(results, r)
	}
	return results, errors.Join(errs...)
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s exists and is not a directory", path)
	}
	return true, nil
}
