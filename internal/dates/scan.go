package dates

import (
	"regexp"
	"sort"
	"strings"
)

// Match is one date-like span found in free text. Err is set when the span
// has a date shape but does not parse (bad month/day, bad clock).
type Match struct {
	Start   int
	End     int
	Raw     string
	Format  Format
	Literal Literal
	Err     error
}

type scanPass struct {
	format Format
	re     *regexp.Regexp
	parse  func(raw string, baseYear int) (Literal, error)
}

// Timestamps are scanned before dates because a date is a prefix of a
// timestamp; text dates share no characters with either and go last.
var scanPasses = []scanPass{
	{
		format: FormatISOTimestamp,
		re:     regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\b`),
		parse:  func(raw string, _ int) (Literal, error) { return ParseISOTimestamp(raw) },
	},
	{
		format: FormatISODate,
		re:     regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		parse:  func(raw string, _ int) (Literal, error) { return ParseISODate(raw) },
	},
	{
		format: FormatTextDateNoYear,
		re:     regexp.MustCompile(`\b(?:` + monthAlternation + `)\s+\d{1,2}(?:\s+\d{4})?\b`),
		parse:  ParseTextDate,
	},
}

// maskByte blanks spans already claimed by an earlier pass. It is neither a
// word character nor whitespace, so no pattern can match across it.
const maskByte = 0x00

// Find returns every date-like span in text, ordered by position. Spans never
// overlap: each pass runs over a copy of text in which earlier matches have
// been masked out.
func Find(text string, baseYear int) []Match {
	if text == "" {
		return nil
	}
	masked := []byte(text)
	var matches []Match
	for _, p := range scanPasses {
		for _, loc := range p.re.FindAllIndex(masked, -1) {
			raw := text[loc[0]:loc[1]]
			lit, err := p.parse(raw, baseYear)
			format := p.format
			if err == nil {
				format = lit.Format
			}
			matches = append(matches, Match{
				Start:   loc[0],
				End:     loc[1],
				Raw:     raw,
				Format:  format,
				Literal: lit,
				Err:     err,
			})
			for i := loc[0]; i < loc[1]; i++ {
				masked[i] = maskByte
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

// replaceMatches rebuilds text with fn applied to every match; bytes between
// matches are copied through untouched.
func replaceMatches(text string, matches []Match, fn func(Match) string) string {
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m.Start])
		b.WriteString(fn(m))
		last = m.End
	}
	b.WriteString(text[last:])
	return b.String()
}
