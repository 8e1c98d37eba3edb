package normalize

import (
	"regexp"
	"strings"
)

var uciIDRe = regexp.MustCompile(`^\d{11}$`)

// ValidUciID reports whether id is an 11-digit UCI ID.
func ValidUciID(id string) bool {
	return uciIDRe.MatchString(id)
}

// FormatUciID strips the spacing some exports use ("100 123 456 78").
func FormatUciID(id string) string {
	return strings.Join(strings.Fields(id), "")
}
