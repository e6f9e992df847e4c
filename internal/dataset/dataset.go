// Package dataset reads and writes the on-disk layout of an airline world:
// db.json, tasks.json, policy.md and split_tasks.json.
//
// JSON documents are held as generic values (map[string]any, []any,
// json.Number, string, bool, nil) so fields this tool does not know about
// survive a load/store cycle untouched.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File names inside a dataset directory.
const (
	DBFile         = "db.json"
	TasksFile      = "tasks.json"
	PolicyFile     = "policy.md"
	SplitTasksFile = "split_tasks.json"
)

// StatusTimestampFields are the flight status fields that carry
// YYYY-MM-DDTHH:MM:SS values.
var StatusTimestampFields = []string{
	"actual_departure_time_est",
	"actual_arrival_time_est",
	"estimated_departure_time_est",
	"estimated_arrival_time_est",
}

// Dataset is one airline world plus its task set.
type Dataset struct {
	DB     map[string]any
	Tasks  []any
	Policy string

	// SplitTasks is the raw split index, copied byte for byte. Nil when the
	// source has none.
	SplitTasks []byte
}

// LoadDir reads a dataset directory. db.json, tasks.json and policy.md are
// required; split_tasks.json is optional.
func LoadDir(dir string) (*Dataset, error) {
	dbVal, err := ReadJSONFile(filepath.Join(dir, DBFile))
	if err != nil {
		return nil, err
	}
	db, ok := dbVal.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: top level is %T, want object", DBFile, dbVal)
	}

	tasksVal, err := ReadJSONFile(filepath.Join(dir, TasksFile))
	if err != nil {
		return nil, err
	}
	tasks, ok := tasksVal.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: top level is %T, want array", TasksFile, tasksVal)
	}

	policy, err := os.ReadFile(filepath.Join(dir, PolicyFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", PolicyFile, err)
	}

	split, err := os.ReadFile(filepath.Join(dir, SplitTasksFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", SplitTasksFile, err)
	}

	return &Dataset{
		DB:         db,
		Tasks:      tasks,
		Policy:     string(policy),
		SplitTasks: split,
	}, nil
}

// WriteDir writes ds into dir, which must already exist.
func WriteDir(dir string, ds *Dataset) error {
	if err := WriteJSONFile(filepath.Join(dir, DBFile), ds.DB); err != nil {
		return err
	}
	if err := WriteJSONFile(filepath.Join(dir, TasksFile), ds.Tasks); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, PolicyFile), []byte(ds.Policy), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", PolicyFile, err)
	}
	if ds.SplitTasks != nil {
		if err := os.WriteFile(filepath.Join(dir, SplitTasksFile), ds.SplitTasks, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", SplitTasksFile, err)
		}
	}
	return nil
}

// DecodeJSON decodes a single JSON document, keeping numbers as
// json.Number so integers and decimals are written back as they were read.
func DecodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON document")
	}
	return v, nil
}

// EncodeJSON writes v with four-space indentation and without HTML
// escaping. Object keys come out sorted.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

// ReadJSONFile decodes the JSON document at path.
func ReadJSONFile(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	v, err := DecodeJSON(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return v, nil
}

// WriteJSONFile encodes v to path.
func WriteJSONFile(path string, v any) error {
	var buf bytes.Buffer
	if err := EncodeJSON(&buf, v); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
