package dates

import (
	"strings"
	"time"
)

var fullMonthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var shortMonthNames = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// monthAlternation is the regexp alternation of every accepted month name.
// Full names come first so "June" wins over "Jun" under leftmost-first matching.
var monthAlternation = func() string {
	names := make([]string, 0, 23)
	names = append(names, fullMonthNames[:]...)
	for _, s := range shortMonthNames {
		if s != "May" {
			names = append(names, s)
		}
	}
	return strings.Join(names, "|")
}()

// lookupMonth resolves a case-sensitive month name. abbrev is false for
// "May", which is both its full and short form.
func lookupMonth(name string) (month time.Month, abbrev bool, ok bool) {
	for i, full := range fullMonthNames {
		if name == full {
			return time.Month(i + 1), false, true
		}
	}
	for i, short := range shortMonthNames {
		if name == short {
			return time.Month(i + 1), true, true
		}
	}
	return 0, false, false
}

// monthName renders month in the short form when abbrev is set, else in full.
func monthName(month time.Month, abbrev bool) string {
	if abbrev {
		return shortMonthNames[month-1]
	}
	return fullMonthNames[month-1]
}
