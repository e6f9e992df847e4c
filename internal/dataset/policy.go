package dataset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrSentinelMissing is returned when a policy has no current-time line.
	ErrSentinelMissing = errors.New("policy has no current-time sentinel")

	// ErrSentinelDuplicated is returned when a policy has more than one.
	ErrSentinelDuplicated = errors.New("policy has more than one current-time sentinel")
)

// reSentinel matches "The current time is YYYY-MM-DD HH:MM:SS EST.".
var reSentinel = regexp.MustCompile(`The current time is (\d{4}-\d{2}-\d{2}) (\d{2}:\d{2}:\d{2}) EST\.`)

// Sentinel is one current-time line found in a policy.
type Sentinel struct {
	Start int
	End   int

	// Timestamp is the sentinel value as YYYY-MM-DDTHH:MM:SS.
	Timestamp string
}

// FindSentinels returns every current-time sentinel in policy.
func FindSentinels(policy string) []Sentinel {
	var out []Sentinel
	for _, m := range reSentinel.FindAllStringSubmatchIndex(policy, -1) {
		out = append(out, Sentinel{
			Start:     m[0],
			End:       m[1],
			Timestamp: policy[m[2]:m[3]] + "T" + policy[m[4]:m[5]],
		})
	}
	return out
}

// SentinelTimestamp returns the timestamp of the single sentinel in policy.
func SentinelTimestamp(policy string) (string, error) {
	found := FindSentinels(policy)
	switch len(found) {
	case 0:
		return "", ErrSentinelMissing
	case 1:
		return found[0].Timestamp, nil
	default:
		return "", fmt.Errorf("%w: found %d", ErrSentinelDuplicated, len(found))
	}
}

// FormatSentinel renders the sentinel line for a YYYY-MM-DDTHH:MM:SS value.
func FormatSentinel(timestamp string) string {
	date, clock, _ := strings.Cut(timestamp, "T")
	return "The current time is " + date + " " + clock + " EST."
}
