// Package dates recognises date and timestamp literals and shifts them by a
// whole number of days while keeping their own textual format.
//
// Four formats are understood:
//
//	iso_date             2024-05-15
//	iso_timestamp        2024-05-15T15:00:00
//	text_date_no_year    May 15, Jun 1
//	text_date_with_year  May 15 2024
//
// Text dates without a year are resolved against a base year before the
// shift and rendered without a year afterwards.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Format tags the textual shape of a date literal.
type Format string

const (
	FormatISODate          Format = "iso_date"
	FormatISOTimestamp     Format = "iso_timestamp"
	FormatTextDateNoYear   Format = "text_date_no_year"
	FormatTextDateWithYear Format = "text_date_with_year"
)

var (
	// ErrUnrecognized is returned when a string is not a literal of the requested format.
	ErrUnrecognized = errors.New("dates: unrecognized date literal")

	// ErrUnknownMonth is returned for a month name outside the full and three-letter tables.
	ErrUnknownMonth = errors.New("dates: unknown month name")

	// ErrInvalidDate is returned when the fields do not form a real calendar date or clock time.
	ErrInvalidDate = errors.New("dates: invalid calendar date")

	// ErrYearRange is returned when a shift would leave the four-digit year range.
	ErrYearRange = errors.New("dates: year out of range")
)

// OffsetSpec is the shift applied during one generation run.
type OffsetSpec struct {
	// Days is the signed offset; positive moves into the future.
	Days int `json:"days" yaml:"days"`

	// BaseYear resolves text dates that carry no year.
	BaseYear int `json:"base_year" yaml:"base_year"`
}

// Literal is one recognised date occurrence.
type Literal struct {
	Raw    string
	Format Format
	Year   int
	Month  time.Month
	Day    int
	Clock  string // HH:MM:SS, timestamps only

	// text rendering details
	monthSep string
	yearSep  string
	abbrev   bool
	padDay   bool
}

var (
	reISODateExact      = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	reISOTimestampExact = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})$`)
	reTextDateExact     = regexp.MustCompile(`^([A-Za-z]+)(\s+)(\d{1,2})(?:(\s+)(\d{4}))?$`)
)

// IsISODate reports whether s has the exact YYYY-MM-DD shape.
func IsISODate(s string) bool {
	return reISODateExact.MatchString(s)
}

// IsISOTimestamp reports whether s has the exact YYYY-MM-DDTHH:MM:SS shape.
func IsISOTimestamp(s string) bool {
	return reISOTimestampExact.MatchString(s)
}

// ParseISODate parses a YYYY-MM-DD literal.
func ParseISODate(s string) (Literal, error) {
	m := reISODateExact.FindStringSubmatch(s)
	if m == nil {
		return Literal{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrUnrecognized, s)
	}
	lit := Literal{Raw: s, Format: FormatISODate}
	if err := lit.setDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); err != nil {
		return Literal{}, fmt.Errorf("%w: %q", err, s)
	}
	return lit, nil
}

// ParseISOTimestamp parses a YYYY-MM-DDTHH:MM:SS literal.
func ParseISOTimestamp(s string) (Literal, error) {
	m := reISOTimestampExact.FindStringSubmatch(s)
	if m == nil {
		return Literal{}, fmt.Errorf("%w: %q is not YYYY-MM-DDTHH:MM:SS", ErrUnrecognized, s)
	}
	lit := Literal{Raw: s, Format: FormatISOTimestamp}
	if err := lit.setDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); err != nil {
		return Literal{}, fmt.Errorf("%w: %q", err, s)
	}
	if atoi(m[4]) > 23 || atoi(m[5]) > 59 || atoi(m[6]) > 59 {
		return Literal{}, fmt.Errorf("%w: %q has an invalid clock", ErrInvalidDate, s)
	}
	lit.Clock = m[4] + ":" + m[5] + ":" + m[6]
	return lit, nil
}

// ParseTextDate parses "<Month> <Day>" or "<Month> <Day> <Year>". A missing
// year is taken from baseYear.
func ParseTextDate(s string, baseYear int) (Literal, error) {
	m := reTextDateExact.FindStringSubmatch(s)
	if m == nil {
		return Literal{}, fmt.Errorf("%w: %q is not a month-day date", ErrUnrecognized, s)
	}
	month, abbrev, ok := lookupMonth(m[1])
	if !ok {
		return Literal{}, fmt.Errorf("%w: %q", ErrUnknownMonth, m[1])
	}

	lit := Literal{
		Raw:      s,
		Format:   FormatTextDateNoYear,
		monthSep: m[2],
		abbrev:   abbrev,
		padDay:   len(m[3]) == 2 && m[3][0] == '0',
	}
	year := baseYear
	if m[5] != "" {
		lit.Format = FormatTextDateWithYear
		lit.yearSep = m[4]
		year = atoi(m[5])
	}
	if err := lit.setDate(year, int(month), atoi(m[3])); err != nil {
		return Literal{}, fmt.Errorf("%w: %q", err, s)
	}
	return lit, nil
}

// Date returns the calendar value at midnight UTC.
func (l Literal) Date() time.Time {
	return time.Date(l.Year, l.Month, l.Day, 0, 0, 0, 0, time.UTC)
}

// Shift moves the literal by days and re-renders it in its own format.
// A zero shift returns the literal untouched, Raw included.
func (l Literal) Shift(days int) (Literal, error) {
	if days == 0 {
		return l, nil
	}
	y, m, d := l.Date().AddDate(0, 0, days).Date()
	if y < 1 || y > 9999 {
		return l, fmt.Errorf("%w: %q shifted by %d days", ErrYearRange, l.Raw, days)
	}
	out := l
	out.Year, out.Month, out.Day = y, m, d
	out.Raw = out.render()
	return out, nil
}

func (l Literal) render() string {
	switch l.Format {
	case FormatISODate:
		return fmt.Sprintf("%04d-%02d-%02d", l.Year, int(l.Month), l.Day)
	case FormatISOTimestamp:
		return fmt.Sprintf("%04d-%02d-%02dT%s", l.Year, int(l.Month), l.Day, l.Clock)
	}

	name := monthName(l.Month, l.abbrev)
	day := strconv.Itoa(l.Day)
	if l.padDay && l.Day < 10 {
		day = "0" + day
	}
	if l.Format == FormatTextDateWithYear {
		return fmt.Sprintf("%s%s%s%s%04d", name, l.monthSep, day, l.yearSep, l.Year)
	}
	return name + l.monthSep + day
}

func (l *Literal) setDate(year, month, day int) error {
	if month < 1 || month > 12 || day < 1 {
		return ErrInvalidDate
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return ErrInvalidDate
	}
	l.Year, l.Month, l.Day = year, time.Month(month), day
	return nil
}

// atoi is only called on regexp-validated digit groups.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
