package dates

// OffsetISODate shifts a YYYY-MM-DD literal. On failure the input is
// returned unchanged together with the error.
func OffsetISODate(s string, days int) (string, error) {
	lit, err := ParseISODate(s)
	if err != nil {
		return s, err
	}
	return shiftLiteral(s, lit, days)
}

// OffsetISOTimestamp shifts the date part of a YYYY-MM-DDTHH:MM:SS literal;
// the clock is kept as is. On failure the input is returned unchanged.
func OffsetISOTimestamp(s string, days int) (string, error) {
	lit, err := ParseISOTimestamp(s)
	if err != nil {
		return s, err
	}
	return shiftLiteral(s, lit, days)
}

// OffsetTextDate shifts a single "<Month> <Day>[ <Year>]" literal. On
// failure the input is returned unchanged.
func OffsetTextDate(s string, days, baseYear int) (string, error) {
	lit, err := ParseTextDate(s, baseYear)
	if err != nil {
		return s, err
	}
	return shiftLiteral(s, lit, days)
}

// OffsetTextDates shifts month-name dates inside text and leaves ISO
// literals alone.
func OffsetTextDates(text string, days, baseYear int) string {
	var textOnly []Match
	for _, m := range Find(text, baseYear) {
		if m.Format == FormatTextDateNoYear || m.Format == FormatTextDateWithYear {
			textOnly = append(textOnly, m)
		}
	}
	return replaceMatches(text, textOnly, func(m Match) string {
		out, _ := shiftMatch(m, days)
		return out
	})
}

// OffsetAllDatesInText shifts every recognised literal in text. Literals that
// fail to parse or shift are left as they were.
func OffsetAllDatesInText(text string, days, baseYear int) string {
	return replaceMatches(text, Find(text, baseYear), func(m Match) string {
		out, _ := shiftMatch(m, days)
		return out
	})
}

func shiftMatch(m Match, days int) (string, error) {
	if m.Err != nil {
		return m.Raw, m.Err
	}
	return shiftLiteral(m.Raw, m.Literal, days)
}

func shiftLiteral(raw string, lit Literal, days int) (string, error) {
	out, err := lit.Shift(days)
	if err != nil {
		return raw, err
	}
	return out.Raw, nil
}
