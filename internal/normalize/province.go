package normalize

import "strings"

var provinceAliases = map[string]string{
	"ab": "AB", "alta": "AB", "alberta": "AB",
	"bc": "BC", "b.c.": "BC", "b.c": "BC", "british columbia": "BC", "colombie-britannique": "BC",
	"mb": "MB", "man": "MB", "manitoba": "MB",
	"nb": "NB", "n.b.": "NB", "new brunswick": "NB", "nouveau-brunswick": "NB",
	"nl": "NL", "nfld": "NL", "newfoundland": "NL", "newfoundland and labrador": "NL",
	"ns": "NS", "n.s.": "NS", "nova scotia": "NS", "nouvelle-écosse": "NS",
	"nt": "NT", "nwt": "NT", "northwest territories": "NT",
	"nu": "NU", "nunavut": "NU",
	"on": "ON", "ont": "ON", "ontario": "ON",
	"pe": "PE", "pei": "PE", "p.e.i.": "PE", "prince edward island": "PE",
	"qc": "QC", "pq": "QC", "que": "QC", "quebec": "QC", "québec": "QC",
	"sk": "SK", "sask": "SK", "saskatchewan": "SK",
	"yt": "YT", "yk": "YT", "yukon": "YT", "yukon territory": "YT",
	"usa": "USA", "us": "USA", "u.s.a.": "USA", "united states": "USA", "united states of america": "USA",
}

// FormatProvince maps the many spellings of a province or territory to its
// code. Unrecognized input is returned upper-cased.
func FormatProvince(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	if code, ok := provinceAliases[strings.ToLower(strings.Join(strings.Fields(trimmed), " "))]; ok {
		return code
	}
	return strings.ToUpper(trimmed)
}
