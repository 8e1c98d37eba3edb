package provider

import (
	"strconv"
	"strings"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/normalize"
	"github.com/velodata/race-pipeline/internal/points"
)

// canonicalizer applies the normalization shared by every results provider.
type canonicalizer struct {
	teams *normalize.TeamCanonicalizer
}

// rawResult is a provider-neutral result row before normalization.
type rawResult struct {
	Place         string
	Bib           string
	FirstName     string
	LastName      string
	FullName      string
	UciID         string
	Team          string
	City          string
	Province      string
	Gender        string
	Time          string
	Gap           string
	ParticipantID string
}

// rawCategory is a provider-neutral category before normalization.
type rawCategory struct {
	Label   string
	Results []rawResult
}

// parsePlace reads a place column: a number, or a status keyword.
func parsePlace(place string) (*int, model.ResultStatus) {
	p := strings.ToUpper(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(place), ".")))
	switch p {
	case "DNF", "DSQ", "DQ", "ABD":
		return nil, model.StatusDNF
	case "DNS":
		return nil, model.StatusDNS
	case "OTL", "OOT":
		return nil, model.StatusOTL
	}
	if n, err := strconv.Atoi(p); err == nil && n > 0 {
		return &n, model.StatusFinisher
	}
	return nil, model.StatusFinisher
}

func parseGender(g string) model.Gender {
	switch strings.ToUpper(strings.TrimSpace(g)) {
	case "M", "MALE", "MEN", "H":
		return model.GenderMale
	case "F", "W", "FEMALE", "WOMEN":
		return model.GenderFemale
	case "X":
		return model.GenderX
	}
	return ""
}

func (c *canonicalizer) result(r rawResult) model.AthleteResult {
	first, last := r.FirstName, r.LastName
	if first == "" && last == "" {
		first, last = normalize.SplitFullName(r.FullName)
	}
	pos, status := parsePlace(r.Place)

	out := model.AthleteResult{
		Position:      pos,
		Bib:           strings.TrimSpace(r.Bib),
		FirstName:     normalize.FormatPersonName(first),
		LastName:      normalize.FormatPersonName(last),
		City:          normalize.Capitalize(r.City),
		Gender:        parseGender(r.Gender),
		Status:        status,
		FinishTime:    strings.TrimSpace(r.Time),
		FinishGap:     strings.TrimSpace(r.Gap),
		ParticipantID: strings.TrimSpace(r.ParticipantID),
	}
	if id := normalize.FormatUciID(r.UciID); normalize.ValidUciID(id) {
		out.UciID = id
	}
	if strings.TrimSpace(r.Province) != "" {
		out.Province = normalize.FormatProvince(r.Province)
	}
	if team, _ := c.teams.Lookup(r.Team); team.Name != "" {
		out.Team = team.Name
	}
	return out
}

// categories normalizes raw categories, giving each a unique alias.
func (c *canonicalizer) categories(raws []rawCategory) []model.EventCategory {
	out := make([]model.EventCategory, 0, len(raws))
	used := make(map[string]int)
	for _, rc := range raws {
		label := strings.Join(strings.Fields(rc.Label), " ")
		alias := normalize.FormatCategoryAlias(label)
		used[alias]++
		if n := used[alias]; n > 1 {
			alias += "-" + strconv.Itoa(n)
		}

		cat := model.EventCategory{
			Alias:   alias,
			Label:   label,
			Gender:  normalize.CategoryGender(label),
			Results: make([]model.AthleteResult, 0, len(rc.Results)),
		}
		for _, r := range rc.Results {
			res := c.result(r)
			if res.FirstName == "" && res.LastName == "" {
				continue
			}
			if res.Gender == "" && cat.Gender != model.GenderX {
				res.Gender = cat.Gender
			}
			cat.Results = append(cat.Results, res)
		}
		normalize.SortResults(cat.Results)
		cat.Starters = points.FieldSize(cat.Results)
		for _, r := range cat.Results {
			if r.Status == model.StatusFinisher {
				cat.Finishers++
			}
		}
		out = append(out, cat)
	}
	return out
}

// event assembles a clean event from normalized categories and source
// metadata, then builds umbrella categories and assigns upgrade points.
func (c *canonicalizer) event(b model.RawBundle, name, date string, loc model.Location, raws []rawCategory) (*model.CleanEventWithResults, error) {
	src := b.Source
	if src.Date != "" {
		date = src.Date
	}
	if src.Name != "" {
		name = src.Name
	}
	name = strings.Join(strings.Fields(name), " ")
	if date == "" {
		return nil, parseError(b, "event has no date", nil)
	}
	if name == "" {
		return nil, parseError(b, "event has no name", nil)
	}
	if !src.SanctionedEventType.Valid() {
		return nil, parseError(b, "unknown sanctioned event type "+strconv.Quote(string(src.SanctionedEventType)), nil)
	}
	if len(raws) == 0 {
		return nil, parseError(b, "event has no categories", nil)
	}

	discipline := src.Discipline
	if discipline == "" {
		discipline = model.DisciplineRoad
	}
	if src.Location != (model.Location{}) {
		loc = src.Location
	}
	if loc.Province != "" {
		loc.Province = normalize.FormatProvince(loc.Province)
	}
	loc.City = normalize.Capitalize(loc.City)

	categories := normalize.BuildUmbrellaCategories(c.categories(raws), src.CombinedCategories)
	AssignPoints(categories, src.SanctionedEventType)

	return &model.CleanEventWithResults{
		Hash:                model.EventHash(b.Year, src.Organizer, model.KindEvent, date),
		Year:                b.Year,
		Date:                date,
		Name:                name,
		Organizer:           src.Organizer,
		Discipline:          discipline,
		SanctionedEventType: src.SanctionedEventType,
		SerieAlias:          src.SerieAlias,
		Location:            loc,
		Categories:          categories,
		Provider:            b.Provider,
		SourceURL:           src.URL,
	}, nil
}

// AssignPoints sets the upgrade points of every placed result. Members of an
// umbrella category are scored against the umbrella's combined field; the
// umbrella itself earns nothing.
func AssignPoints(categories []model.EventCategory, eventType model.SanctionedEventType) {
	umbrellaSize := make(map[string]int)
	for _, cat := range categories {
		if cat.IsUmbrella {
			umbrellaSize[cat.Alias] = points.FieldSize(cat.Results)
		}
	}
	for i := range categories {
		cat := &categories[i]
		if cat.IsUmbrella {
			for j := range cat.Results {
				cat.Results[j].UpgradePoints = nil
			}
			continue
		}
		fieldSize := points.FieldSize(cat.Results)
		if size, ok := umbrellaSize[cat.Umbrella]; ok {
			fieldSize = size
		}
		for j := range cat.Results {
			r := &cat.Results[j]
			r.UpgradePoints = nil
			if r.Position != nil && r.Status == model.StatusFinisher {
				r.UpgradePoints = points.Calculate(eventType, *r.Position, fieldSize)
			}
		}
	}
}
