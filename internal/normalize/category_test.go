package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velodata/race-pipeline/internal/model"
)

func TestFormatCategoryAlias(t *testing.T) {
	assert.Equal(t, "cat-3-4-(w)", FormatCategoryAlias("Cat 3/4 (Women)"))
	assert.Equal(t, "masters-40-(m)", FormatCategoryAlias("Masters 40+ (Men)"))
	assert.Equal(t, "elite", FormatCategoryAlias(" Elite "))
	assert.Equal(t, "cat-3-4", FormatCategoryAlias("Cat 3 / 4"))
}

func TestCategoryGender(t *testing.T) {
	assert.Equal(t, model.GenderFemale, CategoryGender("Cat 3 (Women)"))
	assert.Equal(t, model.GenderMale, CategoryGender("Masters 40+ (Men)"))
	assert.Equal(t, model.GenderX, CategoryGender("U15"))
}

func pos(n int) *int { return &n }

func TestBuildUmbrellaCategories_UnionSortedByPosition(t *testing.T) {
	cats := []model.EventCategory{
		{Alias: "cat-3-(m)", Label: "Cat 3 (M)", Starters: 2, Finishers: 2, Results: []model.AthleteResult{
			{LastName: "A", Position: pos(1), Status: model.StatusFinisher},
			{LastName: "C", Position: pos(3), Status: model.StatusFinisher},
		}},
		{Alias: "cat-4-(m)", Label: "Cat 4 (M)", Starters: 2, Finishers: 1, Results: []model.AthleteResult{
			{LastName: "B", Position: pos(2), Status: model.StatusFinisher},
			{LastName: "D", Status: model.StatusDNF},
		}},
		{Alias: "cat-5-(m)", Label: "Cat 5 (M)"},
	}

	out := BuildUmbrellaCategories(cats, map[string][]string{"Cat 3/4 (M)": {"Cat 3 (M)", "cat-4-(m)"}})

	require.Len(t, out, 4)
	umbrella := out[3]
	assert.True(t, umbrella.IsUmbrella)
	assert.Equal(t, "cat-3-4-(m)", umbrella.Alias)
	assert.Equal(t, 4, umbrella.Starters)
	assert.Equal(t, 3, umbrella.Finishers)
	names := []string{}
	for _, r := range umbrella.Results {
		names = append(names, r.LastName)
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, names)

	assert.Equal(t, "cat-3-4-(m)", out[0].Umbrella)
	assert.Equal(t, "cat-3-4-(m)", out[1].Umbrella)
	assert.Empty(t, out[2].Umbrella)
	assert.Empty(t, cats[0].Umbrella, "input categories are not modified")
}

func TestBuildUmbrellaCategories_SkipsIncompleteGrouping(t *testing.T) {
	cats := []model.EventCategory{{Alias: "cat-3"}}
	out := BuildUmbrellaCategories(cats, map[string][]string{"Cat 3/4": {"cat-3", "cat-4"}})
	assert.Len(t, out, 1)
}

func TestSortResults_UnplacedByStatus(t *testing.T) {
	results := []model.AthleteResult{
		{LastName: "Z", Status: model.StatusDNS},
		{LastName: "Y", Status: model.StatusDNF},
		{LastName: "X", Position: pos(2), Status: model.StatusFinisher},
		{LastName: "W", Status: model.StatusOTL},
		{LastName: "V", Position: pos(1), Status: model.StatusFinisher},
	}
	SortResults(results)
	var order []string
	for _, r := range results {
		order = append(order, r.LastName)
	}
	assert.Equal(t, []string{"V", "X", "W", "Y", "Z"}, order)
}
