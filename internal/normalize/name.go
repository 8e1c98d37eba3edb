// Package normalize converts provider-specific names, provinces, teams and
// categories into the canonical vocabulary. Everything here is pure.
package normalize

import (
	"strings"
	"unicode"
)

// Capitalize upper-cases the first letter of every word. Words start at the
// beginning of the string or after whitespace, a hyphen or an opening bracket.
// All other letters are left as they are, so "McDonald" keeps its capital D.
func Capitalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(name))
	atBoundary := true
	for _, r := range name {
		if atBoundary && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(r)
		}
		atBoundary = isWordBoundary(r)
	}
	return b.String()
}

func isWordBoundary(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '(' || r == '['
}

// NameKey builds the lookup key used to match athletes by name.
func NameKey(firstName, lastName string) string {
	return strings.ToLower(strings.TrimSpace(firstName)) + "|" + strings.ToLower(strings.TrimSpace(lastName))
}

// SplitFullName splits "LAST, First" or "First Last" into first and last name.
// A single word is treated as a last name.
func SplitFullName(full string) (first, last string) {
	full = strings.Join(strings.Fields(full), " ")
	if full == "" {
		return "", ""
	}
	if i := strings.Index(full, ","); i >= 0 {
		return strings.TrimSpace(full[i+1:]), strings.TrimSpace(full[:i])
	}
	i := strings.Index(full, " ")
	if i < 0 {
		return "", full
	}
	return full[:i], full[i+1:]
}

// LooksShouted reports whether a name is written entirely in capitals, as
// some timing exports do for last names.
func LooksShouted(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters++
		}
	}
	return letters > 1
}

// FormatPersonName lower-cases shouted names before capitalizing them.
func FormatPersonName(s string) string {
	if LooksShouted(s) {
		s = strings.ToLower(s)
	}
	return Capitalize(s)
}
