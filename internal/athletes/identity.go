package athletes

import (
	"sort"
	"strconv"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/normalize"
)

// identities builds athlete records keyed by UCI ID.
type identities map[string]*model.Athlete

func (ids identities) get(uciID string) *model.Athlete {
	a, ok := ids[uciID]
	if !ok {
		a = &model.Athlete{UciID: uciID}
		ids[uciID] = a
	}
	return a
}

// BuildAthletes derives athlete identities from the previous run's list,
// registry snapshots in date order and then event results carrying a valid
// UCI ID. Snapshots overwrite what they know; results only fill gaps.
// Replaced UCI IDs are folded into their replacement.
func BuildAthletes(previous []model.Athlete, snapshots []model.SkillSnapshot, events []model.CleanEventWithResults, overrides *model.Overrides) []model.Athlete {
	ids := identities{}
	for _, a := range previous {
		cp := a
		ids[a.UciID] = &cp
	}

	snaps := append([]model.SkillSnapshot(nil), snapshots...)
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].Date < snaps[j].Date })
	for _, s := range snaps {
		year := yearOf(s.Date)
		for _, m := range s.Members {
			if !normalize.ValidUciID(m.UciID) {
				continue
			}
			applySnapshot(ids.get(m.UciID), m, s.Date, year)
		}
	}

	evs := append([]model.CleanEventWithResults(nil), events...)
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].Date != evs[j].Date {
			return evs[i].Date < evs[j].Date
		}
		return evs[i].Hash < evs[j].Hash
	})
	for _, ev := range evs {
		for _, cat := range ev.Categories {
			if cat.IsUmbrella {
				continue
			}
			for _, r := range cat.Results {
				if !normalize.ValidUciID(r.UciID) {
					continue
				}
				gender := r.Gender
				if gender == "" {
					gender = cat.Gender
				}
				a := ids.get(r.UciID)
				fillGaps(a, model.Athlete{
					FirstName: r.FirstName,
					LastName:  r.LastName,
					Gender:    gender,
					City:      r.City,
					Province:  r.Province,
				})
				a.LastUpdated = maxDate(a.LastUpdated, ev.Date)
			}
		}
	}

	for _, old := range sortedKeys(ids) {
		next := overrides.ReplacementFor(old)
		if next == old {
			continue
		}
		target := ids.get(next)
		mergeAthlete(target, *ids[old])
		delete(ids, old)
	}

	out := make([]model.Athlete, 0, len(ids))
	for _, id := range sortedKeys(ids) {
		out = append(out, *ids[id])
	}
	return out
}

func applySnapshot(a *model.Athlete, m model.MemberSnapshot, date string, year int) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&a.FirstName, m.FirstName)
	set(&a.LastName, m.LastName)
	set(&a.City, m.City)
	set(&a.Province, m.Province)
	if m.Gender != "" {
		a.Gender = m.Gender
	}
	if m.BirthYear != 0 {
		a.BirthYear = m.BirthYear
	}
	if len(m.Licenses) > 0 && year > 0 {
		if a.Licenses == nil {
			a.Licenses = map[int][]string{}
		}
		a.Licenses[year] = append([]string(nil), m.Licenses...)
	}
	for d, level := range m.Levels {
		if a.SkillLevels == nil {
			a.SkillLevels = map[model.Discipline]int{}
		}
		a.SkillLevels[d] = level
	}
	for d, cat := range m.AgeCategories {
		if a.AgeCategories == nil {
			a.AgeCategories = map[model.Discipline]string{}
		}
		a.AgeCategories[d] = cat
	}
	a.LastUpdated = maxDate(a.LastUpdated, date)
}

// fillGaps copies the fields of src that a leaves empty.
func fillGaps(a *model.Athlete, src model.Athlete) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&a.FirstName, src.FirstName)
	fill(&a.LastName, src.LastName)
	fill(&a.City, src.City)
	fill(&a.Province, src.Province)
	if a.Gender == "" {
		a.Gender = src.Gender
	}
	if a.BirthYear == 0 {
		a.BirthYear = src.BirthYear
	}
}

// mergeAthlete folds src, a replaced identity, into a.
func mergeAthlete(a *model.Athlete, src model.Athlete) {
	fillGaps(a, src)
	for year, lic := range src.Licenses {
		if a.Licenses == nil {
			a.Licenses = map[int][]string{}
		}
		if _, ok := a.Licenses[year]; !ok {
			a.Licenses[year] = lic
		}
	}
	for d, level := range src.SkillLevels {
		if a.SkillLevels == nil {
			a.SkillLevels = map[model.Discipline]int{}
		}
		if _, ok := a.SkillLevels[d]; !ok {
			a.SkillLevels[d] = level
		}
	}
	for d, cat := range src.AgeCategories {
		if a.AgeCategories == nil {
			a.AgeCategories = map[model.Discipline]string{}
		}
		if _, ok := a.AgeCategories[d]; !ok {
			a.AgeCategories[d] = cat
		}
	}
	a.LastUpdated = maxDate(a.LastUpdated, src.LastUpdated)
}

func maxDate(a, b string) string {
	if b > a {
		return b
	}
	return a
}

// yearOf returns the year of a YYYY-MM-DD date, or 0.
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}
