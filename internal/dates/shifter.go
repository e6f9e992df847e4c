package dates

import "fmt"

// SoftFail records a literal that was left unchanged because it could not
// be parsed or shifted.
type SoftFail struct {
	Raw    string `json:"raw" yaml:"raw"`
	Format Format `json:"format" yaml:"format"`
	Where  string `json:"where,omitempty" yaml:"where,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

func (f SoftFail) String() string {
	if f.Where != "" {
		return fmt.Sprintf("%s %q at %s: %s", f.Format, f.Raw, f.Where, f.Reason)
	}
	return fmt.Sprintf("%s %q: %s", f.Format, f.Raw, f.Reason)
}

// Shifter applies one OffsetSpec and keeps a record of soft failures.
// It is not safe for concurrent use; each generation run owns its own.
type Shifter struct {
	spec  OffsetSpec
	where string
	fails []SoftFail
}

// NewShifter returns a Shifter for spec.
func NewShifter(spec OffsetSpec) *Shifter {
	return &Shifter{spec: spec}
}

// Spec returns the offset this Shifter applies.
func (s *Shifter) Spec() OffsetSpec {
	return s.spec
}

// At sets the location label attached to subsequent soft failures, e.g.
// "db.json users.u1.dob". An empty label clears it.
func (s *Shifter) At(where string) *Shifter {
	s.where = where
	return s
}

// ISODate shifts a YYYY-MM-DD value, soft-failing on bad input.
func (s *Shifter) ISODate(v string) string {
	out, err := OffsetISODate(v, s.spec.Days)
	if err != nil {
		s.record(v, FormatISODate, err)
	}
	return out
}

// ISOTimestamp shifts a YYYY-MM-DDTHH:MM:SS value, soft-failing on bad input.
func (s *Shifter) ISOTimestamp(v string) string {
	out, err := OffsetISOTimestamp(v, s.spec.Days)
	if err != nil {
		s.record(v, FormatISOTimestamp, err)
	}
	return out
}

// Literal shifts v when it is exactly an ISO date or ISO timestamp and
// returns it untouched otherwise. The boolean reports whether v had one of
// those shapes.
func (s *Shifter) Literal(v string) (string, bool) {
	switch {
	case IsISODate(v):
		return s.ISODate(v), true
	case IsISOTimestamp(v):
		return s.ISOTimestamp(v), true
	}
	return v, false
}

// Text shifts every recognised literal inside free text.
func (s *Shifter) Text(text string) string {
	return replaceMatches(text, Find(text, s.spec.BaseYear), func(m Match) string {
		out, err := shiftMatch(m, s.spec.Days)
		if err != nil {
			s.record(m.Raw, m.Format, err)
		}
		return out
	})
}

// SoftFails returns the failures recorded so far, in encounter order.
func (s *Shifter) SoftFails() []SoftFail {
	out := make([]SoftFail, len(s.fails))
	copy(out, s.fails)
	return out
}

func (s *Shifter) record(raw string, format Format, err error) {
	s.fails = append(s.fails, SoftFail{Raw: raw, Format: format, Where: s.where, Reason: err.Error()})
}
