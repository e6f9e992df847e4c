// Package sanitize cleans values that come from outside the process
// (model names, MCP tool input, command-line paths) before they are used
// in file names, shifted or written to the results ledger.
package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTextLength is the maximum length accepted for free text.
const MaxTextLength = 100000

// MaxComponentLength is the maximum length of a file name component.
const MaxComponentLength = 120

var (
	// reRepeatedUnderscores matches 2 or more consecutive underscores.
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)

	// reRepeatedHyphens matches 2 or more consecutive hyphens.
	reRepeatedHyphens = regexp.MustCompile(`-{2,}`)
)

// FileComponent turns a name such as a model id into a single file name
// component. Characters outside [a-zA-Z0-9._-] become underscores, so
// "openrouter/anthropic/claude" stays one path element. Runs of
// underscores or hyphens collapse, leading dots are dropped, and the
// result is truncated to MaxComponentLength. An empty result is "unknown".
func FileComponent(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	s := b.String()

	s = reRepeatedUnderscores.ReplaceAllString(s, "_")
	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	s = strings.TrimLeft(s, "._")
	s = strings.TrimRight(s, "_")

	if len(s) > MaxComponentLength {
		s = s[:MaxComponentLength]
	}
	if s == "" {
		return "unknown"
	}
	return s
}

// Text strips control characters other than newline and tab, and truncates
// to MaxTextLength runes. Date literals and all other content pass through
// unchanged.
func Text(input string) string {
	if input == "" {
		return ""
	}
	s := stripControlChars(input)

	// Rune-safe so a multi-byte character is never split.
	if utf8.RuneCountInString(s) > MaxTextLength {
		runes := []rune(s)
		s = string(runes[:MaxTextLength])
	}
	return s
}

// Path strips control characters from a path and cleans it.
func Path(input string) string {
	if input == "" {
		return ""
	}
	return filepath.Clean(stripControlChars(input))
}

// stripControlChars removes ASCII control characters (0x00-0x1F) and DEL (0x7F) from
// the string, except for newline (0x0A) and tab (0x09) which are preserved.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r < 0x20 || r == 0x7F) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
