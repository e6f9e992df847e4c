package variant

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvandessel/timeshift/internal/dataset"
	"github.com/nvandessel/timeshift/internal/dates"
)

// Info is one generated variant found on disk.
type Info struct {
	Name       string    `json:"name"`
	OffsetDays int       `json:"offset_days"`
	Dir        string    `json:"dir"`
	Manifest   *Manifest `json:"manifest,omitempty"`
}

// List returns the generated variants of domain under dataRoot, ordered by
// offset. Directories missing any required data file are skipped.
func List(dataRoot, domain string) ([]Info, error) {
	entries, err := os.ReadDir(DomainsDir(dataRoot))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing variants: %w", err)
	}

	var out []Info
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		d, days, err := ParseName(e.Name())
		if err != nil || d != domain {
			continue
		}
		dir := Dir(dataRoot, e.Name())
		if !isComplete(dir) {
			slog.Debug("list: skipping incomplete variant", "dir", dir)
			continue
		}
		info := Info{Name: e.Name(), OffsetDays: days, Dir: dir}
		if m, err := ReadManifest(dir); err == nil {
			info.Manifest = m
		} else {
			slog.Debug("list: no manifest", "dir", dir, "error", err)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OffsetDays < out[j].OffsetDays })
	return out, nil
}

func isComplete(dir string) bool {
	for _, f := range []string{dataset.DBFile, dataset.TasksFile, dataset.PolicyFile} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			return false
		}
	}
	return true
}

// Sample shows how a handful of source values map under an offset.
type Sample struct {
	Kind   string   `json:"kind"`
	Label  string   `json:"label"`
	Before []string `json:"before"`
	After  []string `json:"after"`
}

// Samples previews the shift of the first n flights' first n date keys and
// of the policy current time, without writing anything.
func (g *Generator) Samples(days, n int) ([]Sample, error) {
	src, err := dataset.LoadDir(Dir(g.DataRoot, g.Domain))
	if err != nil {
		return nil, fmt.Errorf("loading source domain %s: %w", g.Domain, err)
	}

	var out []Sample
	flights := dataset.Section(src.DB, "flights")
	for i, number := range dataset.SortedKeys(flights) {
		if i >= n {
			break
		}
		flight, _ := dataset.Object(flights[number])
		byDate, _ := dataset.Object(flight["dates"])
		keys := dataset.SortedKeys(byDate)
		if len(keys) > n {
			keys = keys[:n]
		}
		s := Sample{Kind: "flight", Label: number, Before: keys}
		for _, k := range keys {
			shifted, _ := dates.OffsetISODate(k, days)
			s.After = append(s.After, shifted)
		}
		out = append(out, s)
	}

	if ts, err := dataset.SentinelTimestamp(src.Policy); err == nil {
		shifted, _ := dates.OffsetISOTimestamp(ts, days)
		out = append(out, Sample{
			Kind:   "policy",
			Label:  "current time",
			Before: []string{strings.Replace(ts, "T", " ", 1)},
			After:  []string{strings.Replace(shifted, "T", " ", 1)},
		})
	}
	return out, nil
}
