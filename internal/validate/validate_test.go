package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/timeshift/internal/dataset"
	"github.com/nvandessel/timeshift/internal/dataset/datasettest"
	"github.com/nvandessel/timeshift/internal/variant"
)

func generate(t *testing.T, days int) (root, dir string) {
	t.Helper()
	root = t.TempDir()
	datasettest.WriteAirline(t, variant.Dir(root, "airline"))
	g := &variant.Generator{DataRoot: root, Domain: "airline", BaseYear: datasettest.BaseYear}
	res, err := g.Generate(days, false)
	if err != nil {
		t.Fatalf("Generate(%d) error = %v", days, err)
	}
	return root, res.Dir
}

func TestDir_GeneratedVariantsPass(t *testing.T) {
	for _, days := range []int{-36525, -1825, -365, 1, 365, 1825, 36525} {
		_, dir := generate(t, days)
		r := Dir(dir, Options{OffsetDays: days})
		if !r.Passed {
			t.Errorf("offset %d: Passed = false, errors = %v", days, r.Errors)
		}
		if len(r.Warnings) != 0 {
			t.Errorf("offset %d: warnings = %v", days, r.Warnings)
		}
	}
}

func TestDir_SourceDatasetPassesAtZero(t *testing.T) {
	dir := datasettest.WriteAirline(t, t.TempDir())
	r := Dir(dir, Options{})
	if !r.Passed || len(r.Warnings) != 0 {
		t.Errorf("source dataset: errors = %v, warnings = %v", r.Errors, r.Warnings)
	}
}

func TestDir_StaleTasks(t *testing.T) {
	for _, days := range []int{365, 1825, 3650, 36525, -36525} {
		_, dir := generate(t, days)
		if err := os.WriteFile(filepath.Join(dir, dataset.TasksFile), []byte(datasettest.TasksJSON), 0644); err != nil {
			t.Fatal(err)
		}

		r := Dir(dir, Options{OffsetDays: days})
		if r.Passed {
			t.Errorf("offset %d: Passed = true for a variant with unshifted tasks", days)
			continue
		}
		if len(r.Errors) != 1 {
			t.Errorf("offset %d: Errors = %v, want exactly one", days, r.Errors)
			continue
		}
		if !strings.Contains(r.Errors[0], "Task 0") || !strings.Contains(r.Errors[0], "2024-05-15") {
			t.Errorf("offset %d: error %q should name task 0 and 2024-05-15", days, r.Errors[0])
		}
	}
}

func TestDir_MonthBoundaryFlightDate(t *testing.T) {
	root := t.TempDir()
	src := datasettest.WriteAirline(t, variant.Dir(root, "airline"))
	rewrite := map[string][2]string{
		dataset.DBFile:    {`"2024-05-16": {`, `"2024-06-01": {`},
		dataset.TasksFile: {`{"flight_number": "AA100", "date": "2024-05-15"}`, `{"flight_number": "AA100", "date": "2024-06-01"}`},
	}
	for name, r := range rewrite {
		path := filepath.Join(src, name)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), r[0]) {
			t.Fatalf("%s has no %s", name, r[0])
		}
		if err := os.WriteFile(path, []byte(strings.Replace(string(data), r[0], r[1], 1)), 0644); err != nil {
			t.Fatal(err)
		}
	}

	g := &variant.Generator{DataRoot: root, Domain: "airline", BaseYear: datasettest.BaseYear}
	res, err := g.Generate(365, false)
	if err != nil {
		t.Fatalf("Generate(365) error = %v", err)
	}
	out, err := dataset.LoadDir(res.Dir)
	if err != nil {
		t.Fatal(err)
	}

	aa100 := dataset.Section(out.DB, "flights")["AA100"].(map[string]any)["dates"].(map[string]any)
	if _, ok := aa100["2025-06-01"]; !ok {
		t.Errorf("AA100 has no 2025-06-01 key: %v", dataset.SortedKeys(aa100))
	}
	args := out.Tasks[0].(map[string]any)["evaluation_criteria"].(map[string]any)["actions"].([]any)[0].(map[string]any)["arguments"].(map[string]any)
	if d := args["flights"].([]any)[0].(map[string]any)["date"]; d != "2025-06-01" {
		t.Errorf("task argument date = %v, want 2025-06-01", d)
	}

	r := Dir(res.Dir, Options{OffsetDays: 365})
	if !r.Passed || len(r.Errors) != 0 {
		t.Errorf("Passed = %v, errors = %v", r.Passed, r.Errors)
	}
}

func TestDir_Missing(t *testing.T) {
	r := Dir(filepath.Join(t.TempDir(), "nope"), Options{OffsetDays: 1})
	if r.Passed || len(r.Errors) != 1 || !strings.Contains(r.Errors[0], "does not exist") {
		t.Errorf("Dir(missing) = %+v", r)
	}
}

func TestDir_ManifestSoftFails(t *testing.T) {
	_, dir := generate(t, 30)
	m, err := variant.ReadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	m.SoftFailCount = 2
	if err := variant.WriteManifest(dir, m); err != nil {
		t.Fatal(err)
	}

	r := Dir(dir, Options{OffsetDays: 30})
	if !r.Passed {
		t.Errorf("soft fails must not be fatal: %v", r.Errors)
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "2 date literal(s)") {
		t.Errorf("Warnings = %v", r.Warnings)
	}
}

func TestOptions_ThresholdYear(t *testing.T) {
	tests := []struct {
		opts Options
		want int
	}{
		{Options{}, 2020},
		{Options{OffsetDays: 365}, 2020},
		{Options{OffsetDays: 366}, 2021},
		{Options{OffsetDays: -365}, 2019},
		{Options{OffsetDays: -1825}, 2015},
		{Options{OffsetDays: 0, FlightDateMinYear: 2022}, 2022},
	}
	for _, tt := range tests {
		if got := tt.opts.ThresholdYear(); got != tt.want {
			t.Errorf("ThresholdYear(%+v) = %d, want %d", tt.opts, got, tt.want)
		}
	}
}

func world(db string) *dataset.Dataset {
	v, err := dataset.DecodeJSON(strings.NewReader(db))
	if err != nil {
		panic(err)
	}
	return &dataset.Dataset{
		DB:     v.(map[string]any),
		Tasks:  []any{},
		Policy: datasettest.Policy,
	}
}

func TestDataset_DOBs(t *testing.T) {
	ds := world(`{
		"users": {
			"old": {"dob": "1850-01-01"},
			"future": {"dob": "2030-01-01", "passengers": [{"dob": "bad"}]}
		},
		"reservations": {
			"R1": {"passengers": [{"dob": "2024-05-16"}]}
		}
	}`)

	r := Dataset(ds, Options{})
	want := []string{
		"User future: DOB 2030-01-01 is in the future (current date: 2024-05-15)",
		"User future: DOB 2030-01-01 gives a negative age",
		"User future passenger 0: Invalid DOB format: bad",
		"Reservation R1 passenger 0: DOB 2024-05-16 is in the future",
		"Reservation R1 passenger 0: DOB 2024-05-16 gives a negative age",
	}
	if len(r.Errors) != len(want) {
		t.Fatalf("Errors = %v, want %d", r.Errors, len(want))
	}
	for i, w := range want {
		if !strings.HasPrefix(r.Errors[i], w) {
			t.Errorf("Errors[%d] = %q, want prefix %q", i, r.Errors[i], w)
		}
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "User old") {
		t.Errorf("Warnings = %v, want one age warning for user old", r.Warnings)
	}
}

func TestDataset_DOBUsesShiftedCurrentDate(t *testing.T) {
	ds := world(`{"users": {"u": {"dob": "2025-01-01"}}}`)
	ds.Policy = strings.Replace(ds.Policy, "2024-05-15", "2025-05-15", 1)

	if r := Dataset(ds, Options{OffsetDays: 365}); !r.Passed {
		t.Errorf("dob before the shifted current date flagged: %v", r.Errors)
	}
	if r := Dataset(ds, Options{OffsetDays: 0}); r.Passed {
		t.Error("dob after the base current date not flagged")
	}
}

func TestDataset_StatusTimestamps(t *testing.T) {
	ds := world(`{
		"flights": {
			"HAT003": {"dates": {
				"2024-05-15": {
					"actual_departure_time_est": "2024-05-15T22:00:00",
					"actual_arrival_time_est": "2024-05-16T01:00:00",
					"estimated_departure_time_est": "2024-05-17T09:00:00",
					"estimated_arrival_time_est": "2024-05-14T09:00:00"
				}
			}}
		}
	}`)
	r := Dataset(ds, Options{})
	if !r.Passed {
		t.Errorf("timestamp drift must not be fatal: %v", r.Errors)
	}
	if len(r.Warnings) != 2 {
		t.Fatalf("Warnings = %v, want 2", r.Warnings)
	}
	if !strings.Contains(r.Warnings[0], "estimated_departure_time_est date (2024-05-17) differs by 2 days") {
		t.Errorf("Warnings[0] = %q", r.Warnings[0])
	}
	if !strings.Contains(r.Warnings[1], "differs by -1 days") {
		t.Errorf("Warnings[1] = %q", r.Warnings[1])
	}
}

func TestDataset_Policy(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		days    int
		wantErr []string
	}{
		{"matches", datasettest.Policy, 0, nil},
		{"missing", "# Policy\n", 0, []string{"does not contain"}},
		{"duplicated", datasettest.Policy + datasettest.Policy, 0, []string{"contains 2 'current time' lines"}},
		{"stale", datasettest.Policy, 1, []string{"Policy date mismatch: expected 2024-05-16, got 2024-05-15"}},
		{
			"wrong clock",
			strings.Replace(datasettest.Policy, "15:00:00", "16:00:00", 1),
			0,
			[]string{"Policy time mismatch: expected 15:00:00, got 16:00:00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := world(`{}`)
			ds.Policy = tt.policy
			r := Dataset(ds, Options{OffsetDays: tt.days})
			if len(r.Errors) != len(tt.wantErr) {
				t.Fatalf("Errors = %v, want %v", r.Errors, tt.wantErr)
			}
			for i, w := range tt.wantErr {
				if !strings.Contains(r.Errors[i], w) {
					t.Errorf("Errors[%d] = %q, want containing %q", i, r.Errors[i], w)
				}
			}
		})
	}
}

func TestDataset_FlightDates(t *testing.T) {
	db := `{
		"flights": {
			"AA100": {"dates": {"2019-05-15": {}, "2019-05-16": {}}},
			"HAT001": {"dates": {"2019-05-17": {}}}
		}
	}`
	tasks := `[
		{"id": "1", "evaluation_criteria": {"actions": [
			{"arguments": {"flights": [{"flight_number": "AA100", "date": "2019-05-17"}]}},
			{"arguments": {"flights": [{"flight_number": "AA100", "date": "2019-05-17"}]}},
			{"arguments": {"flight_number": "ZZ999", "date": "2019-05-17"}},
			{"arguments": {"note": "call back on 2019-06-01", "dob": "1985-01-01"}},
			{"arguments": {"flight_number": "HAT001", "dates": ["2019-05-17", "2019-05-15"]}}
		]}}
	]`

	ds := world(db)
	ds.Policy = strings.Replace(ds.Policy, "2024-05-15", "2019-05-17", 1)
	v, err := dataset.DecodeJSON(strings.NewReader(tasks))
	if err != nil {
		t.Fatal(err)
	}
	ds.Tasks = v.([]any)

	// 2024-05-15 minus 1825 days is 2019-05-17.
	r := Dataset(ds, Options{OffsetDays: -1825})
	want := []string{
		"Task 1: Flight date 2019-05-17 not found for flight AA100 in db.json",
		"Task 1: Flight date 2019-06-01 not found in db.json",
		"Task 1: Flight date 2019-05-15 not found for flight HAT001 in db.json",
	}
	if strings.Join(r.Errors, "\n") != strings.Join(want, "\n") {
		t.Errorf("Errors =\n%s\nwant\n%s", strings.Join(r.Errors, "\n"), strings.Join(want, "\n"))
	}
}

func TestDataset_FlightDatesBelowThreshold(t *testing.T) {
	db := `{"flights": {"AA100": {"dates": {"2034-05-15": {}}}}}`
	tasks := `[
		{"id": "2", "evaluation_criteria": {"actions": [
			{"arguments": {"flights": [{"flight_number": "AA100", "date": "2024-05-15"}]}},
			{"arguments": {"origin": "JFK", "date": "2024-05-16"}},
			{"arguments": {"flight_number": "AA100", "passengers": [{"dob": "1990-04-05"}]}},
			{"arguments": {"note": "booked on 2024-05-01"}}
		]}}
	]`

	ds := world(db)
	ds.Policy = strings.Replace(ds.Policy, "2024-05-15", "2034-05-15", 1)
	v, err := dataset.DecodeJSON(strings.NewReader(tasks))
	if err != nil {
		t.Fatal(err)
	}
	ds.Tasks = v.([]any)

	// 2024-05-15 plus 3652 days is 2034-05-15; the threshold year is 2029.
	r := Dataset(ds, Options{OffsetDays: 3652})
	want := []string{
		"Task 2: Flight date 2024-05-15 not found for flight AA100 in db.json",
		"Task 2: Flight date 2024-05-16 not found in db.json",
	}
	if strings.Join(r.Errors, "\n") != strings.Join(want, "\n") {
		t.Errorf("Errors =\n%s\nwant\n%s", strings.Join(r.Errors, "\n"), strings.Join(want, "\n"))
	}
}

func TestDataset_UnparsedLiterals(t *testing.T) {
	ds := world(`{"flights": {"X1": {"dates": {"2024-02-30": {}}}}}`)
	ds.Tasks = []any{map[string]any{"id": "9", "description": map[string]any{"purpose": "on May 32"}}}

	r := Dataset(ds, Options{})
	if !r.Passed {
		t.Errorf("unparsed literals must not be fatal: %v", r.Errors)
	}
	if len(r.Warnings) != 1 || !strings.HasPrefix(r.Warnings[0], "2 date-like literal(s)") {
		t.Errorf("Warnings = %v", r.Warnings)
	}
}
