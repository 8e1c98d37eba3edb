package normalize

import (
	"sort"

	"github.com/velodata/race-pipeline/internal/model"
)

// BuildUmbrellaCategories appends one synthetic category per grouping of
// categories that raced together as a single field. Groupings map the
// umbrella label to the aliases of its members. Members are linked to their
// umbrella; the umbrella itself is flagged so it never earns points of its own.
// Groupings naming fewer than two present members are skipped.
func BuildUmbrellaCategories(categories []model.EventCategory, groupings map[string][]string) []model.EventCategory {
	if len(groupings) == 0 {
		return categories
	}

	index := make(map[string]int, len(categories))
	for i, c := range categories {
		index[c.Alias] = i
	}

	labels := make([]string, 0, len(groupings))
	for label := range groupings {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := append([]model.EventCategory(nil), categories...)
	for _, label := range labels {
		umbrellaAlias := FormatCategoryAlias(label)
		var members []int
		for _, alias := range groupings[label] {
			if i, ok := index[FormatCategoryAlias(alias)]; ok {
				members = append(members, i)
			}
		}
		if len(members) < 2 {
			continue
		}

		umbrella := model.EventCategory{
			Alias:      umbrellaAlias,
			Label:      label,
			Gender:     CategoryGender(label),
			IsUmbrella: true,
		}
		for _, i := range members {
			out[i].Umbrella = umbrellaAlias
			umbrella.Starters += out[i].Starters
			umbrella.Finishers += out[i].Finishers
			umbrella.Results = append(umbrella.Results, out[i].Results...)
		}
		SortResults(umbrella.Results)
		out = append(out, umbrella)
	}
	return out
}

// statusRank orders unplaced results after placed ones.
var statusRank = map[model.ResultStatus]int{
	model.StatusFinisher: 0,
	model.StatusOTL:      1,
	model.StatusDNF:      2,
	model.StatusDNS:      3,
}

// SortResults orders results by position; unplaced results follow, grouped by
// status, then by name. The sort is stable so equal rows keep source order.
func SortResults(results []model.AthleteResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		switch {
		case a.Position != nil && b.Position != nil:
			return *a.Position < *b.Position
		case a.Position != nil:
			return true
		case b.Position != nil:
			return false
		}
		if statusRank[a.Status] != statusRank[b.Status] {
			return statusRank[a.Status] < statusRank[b.Status]
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return a.FirstName < b.FirstName
	})
}
