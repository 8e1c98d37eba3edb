package normalize

import (
	"regexp"
	"strings"

	"github.com/velodata/race-pipeline/internal/model"
)

var (
	menRe         = regexp.MustCompile(`\(men\)`)
	womenRe       = regexp.MustCompile(`\(women\)`)
	aliasSepRe    = regexp.MustCompile(`[\s/]+`)
	multiHyphenRe = regexp.MustCompile(`-{2,}`)
)

// FormatCategoryAlias turns a human-readable category label into a stable
// machine key: "Cat 3/4 (Women)" becomes "cat-3-4-(w)".
func FormatCategoryAlias(label string) string {
	alias := strings.ToLower(strings.TrimSpace(label))
	alias = menRe.ReplaceAllString(alias, "(m)")
	alias = womenRe.ReplaceAllString(alias, "(w)")
	alias = strings.ReplaceAll(alias, "+", "")
	alias = aliasSepRe.ReplaceAllString(alias, "-")
	alias = multiHyphenRe.ReplaceAllString(alias, "-")
	return strings.Trim(alias, "-")
}

// CategoryGender guesses the gender of a category from its label.
func CategoryGender(label string) model.Gender {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "(w)"), strings.Contains(l, "women"), strings.Contains(l, "female"),
		strings.HasPrefix(l, "w "), strings.Contains(l, "ladies"):
		return model.GenderFemale
	case strings.Contains(l, "(m)"), strings.Contains(l, "men"), strings.Contains(l, "male"),
		strings.HasPrefix(l, "m "):
		return model.GenderMale
	}
	return model.GenderX
}
