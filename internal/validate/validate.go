// Package validate certifies a generated variant by re-deriving the values
// it should contain and comparing them with what is on disk.
//
// Every check runs on every call; problems are collected into a Result
// rather than returned as errors, so one pass reports all of them.
package validate

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nvandessel/timeshift/internal/dataset"
	"github.com/nvandessel/timeshift/internal/dates"
	"github.com/nvandessel/timeshift/internal/variant"
)

// Defaults for Options fields left at zero.
const (
	DefaultBaseCurrentTime   = "2024-05-15T15:00:00"
	DefaultBaseYear          = 2024
	DefaultFlightDateMinYear = 2020
)

// Options describe the variant being validated.
type Options struct {
	// OffsetDays is the offset the variant was generated with.
	OffsetDays int

	// BaseYear resolves year-less text dates during the literal scan.
	BaseYear int

	// BaseCurrentTime is the source policy sentinel, YYYY-MM-DDTHH:MM:SS.
	BaseCurrentTime string

	// FlightDateMinYear is the first year, before shifting, from which ISO
	// dates in free argument text are treated as flight dates. Dates under
	// a flight date key or in an object naming a known flight are checked
	// whatever their year.
	FlightDateMinYear int
}

func (o Options) withDefaults() Options {
	if o.BaseYear == 0 {
		o.BaseYear = DefaultBaseYear
	}
	if o.BaseCurrentTime == "" {
		o.BaseCurrentTime = DefaultBaseCurrentTime
	}
	if o.FlightDateMinYear == 0 {
		o.FlightDateMinYear = DefaultFlightDateMinYear
	}
	return o
}

// ThresholdYear is FlightDateMinYear moved by the offset: the year of
// January 1st of FlightDateMinYear shifted by OffsetDays.
func (o Options) ThresholdYear() int {
	o = o.withDefaults()
	return time.Date(o.FlightDateMinYear, time.January, 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, o.OffsetDays).Year()
}

// Result is the outcome of validating one variant.
type Result struct {
	Passed   bool     `json:"passed"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func newResult() *Result {
	return &Result{Passed: true, Errors: []string{}, Warnings: []string{}}
}

// AddError records a fatal problem.
func (r *Result) AddError(format string, args ...any) {
	r.Passed = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning records a non-fatal observation.
func (r *Result) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Dir loads the variant in dir and validates it. A variant.yaml, when
// present, contributes its soft-fail count.
func Dir(dir string, opts Options) *Result {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		r := newResult()
		r.AddError("Data directory does not exist: %s", dir)
		return r
	}
	ds, err := dataset.LoadDir(dir)
	if err != nil {
		r := newResult()
		r.AddError("Failed to load data files: %v", err)
		return r
	}

	r := Dataset(ds, opts)

	m, err := variant.ReadManifest(dir)
	switch {
	case err == nil && m.SoftFailCount > 0:
		r.AddWarning("Generation left %d date literal(s) unchanged (see %s)", m.SoftFailCount, variant.ManifestFile)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		r.AddWarning("Unreadable %s: %v", variant.ManifestFile, err)
	}
	return r
}

// Dataset validates an in-memory variant.
func Dataset(ds *dataset.Dataset, opts Options) *Result {
	opts = opts.withDefaults()
	r := newResult()

	checkFlightDates(ds, opts, r)
	checkDOBs(ds.DB, opts, r)
	checkStatusTimestamps(ds.DB, r)
	checkPolicy(ds.Policy, opts, r)
	checkUnparsedLiterals(ds, opts, r)

	return r
}

// checkUnparsedLiterals reports date-shaped text that no recogniser could
// read; generation leaves such literals untouched.
func checkUnparsedLiterals(ds *dataset.Dataset, opts Options, r *Result) {
	var bad []string
	scan := func(_ string, s string) {
		for _, m := range dates.Find(s, opts.BaseYear) {
			if m.Err != nil {
				bad = append(bad, m.Raw)
			}
		}
	}
	dataset.Walk(ds.DB, "", scan)
	dataset.Walk(ds.Tasks, "", scan)
	scan("", ds.Policy)

	flights := dataset.Section(ds.DB, "flights")
	for _, number := range dataset.SortedKeys(flights) {
		flight, _ := dataset.Object(flights[number])
		byDate, _ := dataset.Object(flight["dates"])
		for _, key := range dataset.SortedKeys(byDate) {
			if _, err := dates.ParseISODate(key); err != nil {
				bad = append(bad, key)
			}
		}
	}

	if len(bad) > 0 {
		r.AddWarning("%d date-like literal(s) could not be parsed and were not shifted (first: %q)", len(bad), bad[0])
	}
}
