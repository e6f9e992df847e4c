package dataset

import (
	"sort"
	"strconv"
)

// Object returns v as a JSON object.
func Object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Array returns v as a JSON array.
func Array(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// String returns v as a non-empty JSON string.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}

// Section returns the object stored under key in db (users, flights,
// reservations). A missing or non-object section yields nil.
func Section(db map[string]any, key string) map[string]any {
	m, _ := Object(db[key])
	return m
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TaskID returns the "id" of a task record as a string. Numeric ids are
// rendered as written.
func TaskID(task any) string {
	m, ok := Object(task)
	if !ok {
		return ""
	}
	switch id := m["id"].(type) {
	case string:
		return id
	case interface{ String() string }:
		return id.String()
	}
	return ""
}

// Walk calls fn for every string value reachable from v, with a dotted path
// of object keys and array indexes.
func Walk(v any, path string, fn func(path, s string)) {
	switch t := v.(type) {
	case string:
		fn(path, t)
	case map[string]any:
		for _, k := range SortedKeys(t) {
			Walk(t[k], joinPath(path, k), fn)
		}
	case []any:
		for i, item := range t {
			Walk(item, joinPath(path, strconv.Itoa(i)), fn)
		}
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

