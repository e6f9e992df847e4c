// Package variant generates and lists shifted copies of an airline dataset.
//
// A variant lives in its own directory next to the source domain and is
// named after its offset: airline_offset_p365d for +365 days,
// airline_offset_n365d for -365 days. The unshifted source keeps the bare
// domain name.
package variant

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// MaxOffsetDays bounds the absolute offset accepted for generation.
const MaxOffsetDays = 36525

var (
	// ErrZeroOffset is returned when generation is asked for offset zero,
	// which is the source dataset itself.
	ErrZeroOffset = errors.New("offset of 0 is the source dataset, nothing to generate")

	// ErrOffsetOutOfRange is returned for offsets beyond MaxOffsetDays.
	ErrOffsetOutOfRange = errors.New("offset out of range")

	// ErrVariantExists is matched by *ExistsError.
	ErrVariantExists = errors.New("variant already exists")

	// ErrNotVariantName is returned by ParseName for names that do not follow
	// the <domain>_offset_<p|n><days>d pattern.
	ErrNotVariantName = errors.New("not a variant name")
)

// ExistsError reports a variant directory that is already present.
type ExistsError struct {
	Name string
	Dir  string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("variant %s already exists at %s (use force to overwrite)", e.Name, e.Dir)
}

// Is makes errors.Is(err, ErrVariantExists) true.
func (e *ExistsError) Is(target error) bool {
	return target == ErrVariantExists
}

// CheckOffset validates an offset for generation.
func CheckOffset(days int) error {
	if days == 0 {
		return ErrZeroOffset
	}
	if days > MaxOffsetDays || days < -MaxOffsetDays {
		return fmt.Errorf("%w: %d days (limit is +/-%d)", ErrOffsetOutOfRange, days, MaxOffsetDays)
	}
	return nil
}

// Suffix returns "offset_p365d" style labels; zero renders as offset_p0d.
// It also names per-offset results directories.
func Suffix(days int) string {
	sign := "p"
	if days < 0 {
		sign = "n"
		days = -days
	}
	return "offset_" + sign + strconv.Itoa(days) + "d"
}

// Name returns the variant name of domain shifted by days.
func Name(domain string, days int) string {
	if days == 0 {
		return domain
	}
	return domain + "_" + Suffix(days)
}

var reVariantName = regexp.MustCompile(`^(.+)_offset_([pn])(\d+)d$`)

var reSuffix = regexp.MustCompile(`offset_([pn])(\d+)d`)

// ParseName splits a variant name into its domain and offset.
func ParseName(name string) (domain string, days int, err error) {
	m := reVariantName.FindStringSubmatch(name)
	if m == nil {
		return "", 0, fmt.Errorf("%w: %q", ErrNotVariantName, name)
	}
	days, err = signedDays(m[2], m[3])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrNotVariantName, name)
	}
	return m[1], days, nil
}

// ParseSuffix finds an offset_<p|n><days>d label anywhere in s, e.g. in a
// results path.
func ParseSuffix(s string) (int, bool) {
	m := reSuffix.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	days, err := signedDays(m[1], m[2])
	return days, err == nil
}

func signedDays(sign, digits string) (int, error) {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, err
	}
	if sign == "n" {
		n = -n
	}
	return n, nil
}

// DomainsDir is the directory holding the source domain and its variants,
// <dataRoot>/tau2/domains.
func DomainsDir(dataRoot string) string {
	return filepath.Join(dataRoot, "tau2", "domains")
}

// Dir returns the data directory of the named domain or variant.
func Dir(dataRoot, name string) string {
	return filepath.Join(DomainsDir(dataRoot), name)
}
