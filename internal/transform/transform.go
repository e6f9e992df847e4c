// Package transform rewrites every date-bearing field of an airline world,
// its task set and its policy by one offset.
//
// Inputs are never modified. The world and task records are deep-copied
// before rewriting, flight date maps are rebuilt rather than re-keyed in
// place, and action arguments go through a visitor that returns new values.
package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nvandessel/timeshift/internal/dataset"
	"github.com/nvandessel/timeshift/internal/dates"
)

// ErrDateKeyCollision is returned when two date keys of one flight map to
// the same key after shifting.
var ErrDateKeyCollision = errors.New("flight date keys collide after shift")

// Dataset returns a shifted copy of ds. The split index is carried over
// unchanged.
func Dataset(ds *dataset.Dataset, s *dates.Shifter) (*dataset.Dataset, error) {
	db, err := World(ds.DB, s)
	if err != nil {
		return nil, err
	}
	return &dataset.Dataset{
		DB:         db,
		Tasks:      Tasks(ds.Tasks, s),
		Policy:     Policy(ds.Policy, s),
		SplitTasks: ds.SplitTasks,
	}, nil
}

// World returns a shifted copy of a db.json document.
func World(db map[string]any, s *dates.Shifter) (map[string]any, error) {
	out := cloneObject(db)

	users := dataset.Section(out, "users")
	for _, id := range dataset.SortedKeys(users) {
		user, ok := dataset.Object(users[id])
		if !ok {
			continue
		}
		where := "db.json users." + id
		shiftField(user, "dob", s.At(where+".dob").ISODate)
		shiftEach(user, "passengers", "dob", s.At(where+".passengers").ISODate)
	}

	flights := dataset.Section(out, "flights")
	for _, number := range dataset.SortedKeys(flights) {
		flight, ok := dataset.Object(flights[number])
		if !ok {
			continue
		}
		byDate, ok := dataset.Object(flight["dates"])
		if !ok {
			continue
		}
		rebuilt, err := flightDates(number, byDate, s)
		if err != nil {
			return nil, err
		}
		flight["dates"] = rebuilt
	}

	reservations := dataset.Section(out, "reservations")
	for _, id := range dataset.SortedKeys(reservations) {
		res, ok := dataset.Object(reservations[id])
		if !ok {
			continue
		}
		where := "db.json reservations." + id
		shiftField(res, "created_at", s.At(where+".created_at").ISOTimestamp)
		shiftEach(res, "flights", "date", s.At(where+".flights").ISODate)
		shiftEach(res, "passengers", "dob", s.At(where+".passengers").ISODate)
	}

	s.At("")
	return out, nil
}

func flightDates(number string, byDate map[string]any, s *dates.Shifter) (map[string]any, error) {
	out := make(map[string]any, len(byDate))
	for _, key := range dataset.SortedKeys(byDate) {
		where := "db.json flights." + number + ".dates." + key
		newKey := s.At(where).ISODate(key)
		if _, taken := out[newKey]; taken {
			return nil, fmt.Errorf("%w: flight %s, date %s", ErrDateKeyCollision, number, newKey)
		}
		status := byDate[key]
		if st, ok := dataset.Object(status); ok {
			for _, field := range dataset.StatusTimestampFields {
				shiftField(st, field, s.At(where+"."+field).ISOTimestamp)
			}
		}
		out[newKey] = status
	}
	return out, nil
}

// instructionFields are the free-text fields of user_scenario.instructions.
var instructionFields = []string{"task_instructions", "reason_for_call", "known_info", "unknown_info"}

// Tasks returns a shifted copy of a tasks.json array.
func Tasks(tasks []any, s *dates.Shifter) []any {
	out := cloneArray(tasks)
	for i, t := range out {
		task, ok := dataset.Object(t)
		if !ok {
			continue
		}
		where := fmt.Sprintf("tasks.json task %s", taskLabel(task, i))

		if scenario, ok := dataset.Object(task["user_scenario"]); ok {
			if instr, ok := dataset.Object(scenario["instructions"]); ok {
				for _, f := range instructionFields {
					shiftField(instr, f, s.At(where+" instructions."+f).Text)
				}
			}
		}

		if desc, ok := dataset.Object(task["description"]); ok {
			shiftField(desc, "purpose", s.At(where+" description.purpose").Text)
			shiftField(desc, "notes", s.At(where+" description.notes").Text)
		}

		criteria, ok := dataset.Object(task["evaluation_criteria"])
		if !ok {
			continue
		}
		if actions, ok := dataset.Array(criteria["actions"]); ok {
			for _, a := range actions {
				if action, ok := dataset.Object(a); ok && action["arguments"] != nil {
					action["arguments"] = Value(action["arguments"], s.At(where+" actions.arguments"))
				}
			}
		}
		if assertions, ok := dataset.Array(criteria["nl_assertions"]); ok {
			s.At(where + " nl_assertions")
			for j, a := range assertions {
				if text, ok := dataset.String(a); ok {
					assertions[j] = s.Text(text)
				}
			}
		}
		if infos, ok := dataset.Array(criteria["communicate_info"]); ok {
			for _, c := range infos {
				if info, ok := dataset.Object(c); ok {
					shiftField(info, "value", s.At(where+" communicate_info.value").Text)
				}
			}
		}
	}
	s.At("")
	return out
}

// Value returns a copy of v in which every string that is exactly an ISO
// date or ISO timestamp has been shifted. Other strings, numbers and
// structure are kept.
func Value(v any, s *dates.Shifter) any {
	switch t := v.(type) {
	case string:
		out, _ := s.Literal(t)
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for _, k := range dataset.SortedKeys(t) {
			out[k] = Value(t[k], s)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Value(item, s)
		}
		return out
	default:
		return v
	}
}

// Policy shifts the current-time sentinel of a policy document. All other
// text is kept byte for byte.
func Policy(policy string, s *dates.Shifter) string {
	found := dataset.FindSentinels(policy)
	if len(found) == 0 {
		return policy
	}
	s.At("policy.md")
	var b strings.Builder
	last := 0
	for _, m := range found {
		b.WriteString(policy[last:m.Start])
		b.WriteString(dataset.FormatSentinel(s.ISOTimestamp(m.Timestamp)))
		last = m.End
	}
	b.WriteString(policy[last:])
	s.At("")
	return b.String()
}

func shiftField(obj map[string]any, key string, fn func(string) string) {
	if v, ok := dataset.String(obj[key]); ok {
		obj[key] = fn(v)
	}
}

// shiftEach applies fn to field of every object in the array obj[key].
func shiftEach(obj map[string]any, key, field string, fn func(string) string) {
	items, ok := dataset.Array(obj[key])
	if !ok {
		return
	}
	for _, item := range items {
		if m, ok := dataset.Object(item); ok {
			shiftField(m, field, fn)
		}
	}
}

func taskLabel(task map[string]any, index int) string {
	if id := dataset.TaskID(task); id != "" {
		return id
	}
	return fmt.Sprintf("#%d", index)
}
