package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/timeshift/internal/dataset"
	"github.com/nvandessel/timeshift/internal/dates"
)

var reEmbeddedDate = regexp.MustCompile(`\b(\d{4})-\d{2}-\d{2}\b`)

// flightIndex maps flight number to its set of date keys.
type flightIndex map[string]map[string]bool

func indexFlights(db map[string]any) (flightIndex, map[string]bool) {
	idx := flightIndex{}
	all := map[string]bool{}
	flights := dataset.Section(db, "flights")
	for number, f := range flights {
		flight, _ := dataset.Object(f)
		byDate, _ := dataset.Object(flight["dates"])
		keys := make(map[string]bool, len(byDate))
		for k := range byDate {
			keys[k] = true
			all[k] = true
		}
		idx[number] = keys
	}
	return idx, all
}

// checkFlightDates verifies that every flight date in an action argument is
// a flight date key, and a key of the named flight when the argument object
// names one. Dates held under a flight date key or by an object naming a
// known flight are always checked; other dates only from the threshold year.
func checkFlightDates(ds *dataset.Dataset, opts Options, r *Result) {
	idx, all := indexFlights(ds.DB)
	minYear := opts.ThresholdYear()
	seen := map[string]bool{}

	for i, t := range ds.Tasks {
		task, ok := dataset.Object(t)
		if !ok {
			continue
		}
		id := dataset.TaskID(task)
		if id == "" {
			id = "#" + strconv.Itoa(i)
		}
		criteria, _ := dataset.Object(task["evaluation_criteria"])
		actions, _ := dataset.Array(criteria["actions"])

		check := func(s, flight string, keyed bool) {
			for _, m := range reEmbeddedDate.FindAllStringSubmatch(s, -1) {
				date := m[0]
				if year, _ := strconv.Atoi(m[1]); !keyed && year < minYear {
					continue
				}
				key := id + "|" + flight + "|" + date
				if seen[key] {
					continue
				}
				if flight != "" {
					if !idx[flight][date] {
						seen[key] = true
						r.AddError("Task %s: Flight date %s not found for flight %s in db.json", id, date, flight)
					}
					continue
				}
				if !all[date] {
					seen[key] = true
					r.AddError("Task %s: Flight date %s not found in db.json", id, date)
				}
			}
		}

		for _, a := range actions {
			action, ok := dataset.Object(a)
			if !ok {
				continue
			}
			walkArguments(action["arguments"], "", false, idx, check)
		}
	}
}

// walkArguments visits the strings of an argument tree. Strings held by an
// object naming a known flight_number, directly or through an array, are
// checked against that flight. keyed marks values reached through a flight
// date key or a known flight's object.
func walkArguments(v any, flight string, keyed bool, idx flightIndex, check func(s, flight string, keyed bool)) {
	switch t := v.(type) {
	case string:
		check(t, flight, keyed)
	case map[string]any:
		own := ""
		if number, ok := dataset.String(t["flight_number"]); ok {
			if _, known := idx[number]; known {
				own = number
			}
		}
		for _, k := range dataset.SortedKeys(t) {
			inContext := isFlightDateKey(k) || (own != "" && !isBirthDateKey(k))
			if s, ok := t[k].(string); ok {
				check(s, own, inContext)
				continue
			}
			walkArguments(t[k], own, inContext, idx, check)
		}
	case []any:
		for _, item := range t {
			walkArguments(item, flight, keyed, idx, check)
		}
	}
}

func isFlightDateKey(k string) bool {
	if isBirthDateKey(k) {
		return false
	}
	return k == "date" || k == "dates" || strings.HasSuffix(k, "_date") || strings.HasSuffix(k, "_dates")
}

func isBirthDateKey(k string) bool {
	return k == "dob" || k == "date_of_birth"
}

// checkDOBs compares every date of birth with the variant's current date.
func checkDOBs(db map[string]any, opts Options, r *Result) {
	base, err := dates.ParseISOTimestamp(opts.BaseCurrentTime)
	if err != nil {
		r.AddError("Base current time %q is not a valid timestamp: %v", opts.BaseCurrentTime, err)
		return
	}
	current := base.Date().AddDate(0, 0, opts.OffsetDays)

	users := dataset.Section(db, "users")
	for _, id := range dataset.SortedKeys(users) {
		user, _ := dataset.Object(users[id])
		subject := "User " + id
		checkDOB(subject, user["dob"], current, r)
		passengers, _ := dataset.Array(user["passengers"])
		for i, p := range passengers {
			pass, _ := dataset.Object(p)
			checkDOB(fmt.Sprintf("%s passenger %d", subject, i), pass["dob"], current, r)
		}
	}

	reservations := dataset.Section(db, "reservations")
	for _, id := range dataset.SortedKeys(reservations) {
		res, _ := dataset.Object(reservations[id])
		passengers, _ := dataset.Array(res["passengers"])
		for i, p := range passengers {
			pass, _ := dataset.Object(p)
			checkDOB(fmt.Sprintf("Reservation %s passenger %d", id, i), pass["dob"], current, r)
		}
	}
}

func checkDOB(subject string, v any, current time.Time, r *Result) {
	raw, ok := dataset.String(v)
	if !ok {
		return
	}
	lit, err := dates.ParseISODate(raw)
	if err != nil {
		r.AddError("%s: Invalid DOB format: %s", subject, raw)
		return
	}
	dob := lit.Date()

	if dob.After(current) {
		r.AddError("%s: DOB %s is in the future (current date: %s)", subject, raw, current.Format("2006-01-02"))
	}
	age := current.Sub(dob).Hours() / 24 / 365.25
	if age > 150 {
		r.AddWarning("%s: DOB %s results in age > 150 years", subject, raw)
	}
	if age < 0 {
		r.AddError("%s: DOB %s gives a negative age (%.1f years)", subject, raw, age)
	}
}

// checkStatusTimestamps allows each status timestamp to fall on its key
// date or the day after.
func checkStatusTimestamps(db map[string]any, r *Result) {
	flights := dataset.Section(db, "flights")
	for _, number := range dataset.SortedKeys(flights) {
		flight, _ := dataset.Object(flights[number])
		byDate, _ := dataset.Object(flight["dates"])
		for _, key := range dataset.SortedKeys(byDate) {
			keyLit, err := dates.ParseISODate(key)
			if err != nil {
				continue
			}
			status, _ := dataset.Object(byDate[key])
			for _, field := range dataset.StatusTimestampFields {
				ts, ok := dataset.String(status[field])
				if !ok {
					continue
				}
				tsLit, err := dates.ParseISOTimestamp(ts)
				if err != nil {
					r.AddWarning("Flight %s on %s: %s value %q is not a timestamp", number, key, field, ts)
					continue
				}
				diff := int(tsLit.Date().Sub(keyLit.Date()).Hours() / 24)
				if diff != 0 && diff != 1 {
					r.AddWarning("Flight %s on %s: %s date (%s) differs by %d days", number, key, field, strings.SplitN(ts, "T", 2)[0], diff)
				}
			}
		}
	}
}

// checkPolicy requires exactly one sentinel carrying the base current time
// shifted by the offset.
func checkPolicy(policy string, opts Options, r *Result) {
	expected, err := dates.OffsetISOTimestamp(opts.BaseCurrentTime, opts.OffsetDays)
	if err != nil {
		r.AddError("Cannot shift base current time %q: %v", opts.BaseCurrentTime, err)
		return
	}
	wantDate, wantTime, _ := strings.Cut(expected, "T")

	found := dataset.FindSentinels(policy)
	switch {
	case len(found) == 0:
		r.AddError("Policy does not contain a valid 'current time' line")
		return
	case len(found) > 1:
		r.AddError("Policy contains %d 'current time' lines, want exactly one", len(found))
	}

	gotDate, gotTime, _ := strings.Cut(found[0].Timestamp, "T")
	if gotDate != wantDate {
		r.AddError("Policy date mismatch: expected %s, got %s", wantDate, gotDate)
	}
	if gotTime != wantTime {
		r.AddError("Policy time mismatch: expected %s, got %s", wantTime, gotTime)
	}
}
