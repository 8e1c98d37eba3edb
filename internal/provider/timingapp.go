package provider

import (
	"github.com/bytedance/sonic"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/normalize"
)

// timingPayload is the JSON embedded in timing-app result pages. Type selects
// which of Event or Serie is present.
type timingPayload struct {
	Type  string       `json:"type" validate:"required,oneof=event serie"`
	Event *timingEvent `json:"event" validate:"required_if=Type event"`
	Serie *timingSerie `json:"serie" validate:"required_if=Type serie"`
}

type timingEvent struct {
	Name       string           `json:"name"`
	Date       string           `json:"date" validate:"omitempty,datetime=2006-01-02"`
	City       string           `json:"city"`
	Province   string           `json:"province"`
	Categories []timingCategory `json:"categories" validate:"required,min=1,dive"`
}

type timingCategory struct {
	Label   string         `json:"label" validate:"required"`
	Results []timingResult `json:"results" validate:"dive"`
}

type timingResult struct {
	Place         string `json:"place"`
	Bib           string `json:"bib"`
	FirstName     string `json:"first_name" validate:"required_without=Name"`
	LastName      string `json:"last_name" validate:"required_without=Name"`
	Name          string `json:"name"`
	UciID         string `json:"uci_id"`
	Team          string `json:"team"`
	City          string `json:"city"`
	Province      string `json:"province"`
	Gender        string `json:"gender"`
	Time          string `json:"time"`
	Gap           string `json:"gap"`
	ParticipantID string `json:"participant_id"`
}

type timingSerie struct {
	Name       string           `json:"name" validate:"required"`
	Rounds     []string         `json:"rounds"`
	Categories []timingStanding `json:"categories" validate:"required,min=1,dive"`
}

type timingStanding struct {
	Label   string       `json:"label" validate:"required"`
	Entries []timingRank `json:"entries" validate:"dive"`
}

type timingRank struct {
	Place       string `json:"place"`
	FirstName   string `json:"first_name" validate:"required_without=Name"`
	LastName    string `json:"last_name" validate:"required_without=Name"`
	Name        string `json:"name"`
	UciID       string `json:"uci_id"`
	Team        string `json:"team"`
	Points      int    `json:"points"`
	RoundPoints []int  `json:"round_points"`
}

// TimingAppParser parses the JSON payload of timing-app exports.
type TimingAppParser struct {
	c *canonicalizer
}

// Parse implements Parser.
func (p *TimingAppParser) Parse(b model.RawBundle) (Document, error) {
	var payload timingPayload
	if err := sonic.ConfigStd.UnmarshalFromString(b.Payload, &payload); err != nil {
		return Document{}, parseError(b, "malformed timing-app json", err)
	}
	if err := validate.Struct(payload); err != nil {
		return Document{}, parseError(b, "invalid timing-app payload", err)
	}
	if string(b.Kind) != payload.Type {
		return Document{}, parseError(b, "payload type "+payload.Type+" does not match source kind "+string(b.Kind), nil)
	}

	if payload.Type == "serie" {
		return Document{Serie: p.serie(b, payload.Serie)}, nil
	}

	ev := payload.Event
	raws := make([]rawCategory, 0, len(ev.Categories))
	for _, cat := range ev.Categories {
		rc := rawCategory{Label: cat.Label}
		for _, r := range cat.Results {
			rc.Results = append(rc.Results, rawResult{
				Place:         r.Place,
				Bib:           r.Bib,
				FirstName:     r.FirstName,
				LastName:      r.LastName,
				FullName:      r.Name,
				UciID:         r.UciID,
				Team:          r.Team,
				City:          r.City,
				Province:      r.Province,
				Gender:        r.Gender,
				Time:          r.Time,
				Gap:           r.Gap,
				ParticipantID: r.ParticipantID,
			})
		}
		raws = append(raws, rc)
	}

	event, err := p.c.event(b, ev.Name, ev.Date, model.Location{City: ev.City, Province: ev.Province}, raws)
	if err != nil {
		return Document{}, err
	}
	return Document{Event: event}, nil
}

func (p *TimingAppParser) serie(b model.RawBundle, s *timingSerie) *model.CleanSerieWithResults {
	src := b.Source
	name := s.Name
	if src.Name != "" {
		name = src.Name
	}
	alias := src.SerieAlias
	if alias == "" {
		alias = normalize.FormatCategoryAlias(name)
	}

	out := &model.CleanSerieWithResults{
		Hash:      model.EventHash(b.Year, src.Organizer, model.KindSerie, alias),
		Year:      b.Year,
		Alias:     alias,
		Name:      name,
		Organizer: src.Organizer,
		Rounds:    s.Rounds,
		Standings: make([]model.SerieStanding, 0, len(s.Categories)),
		Provider:  b.Provider,
	}
	for _, cat := range s.Categories {
		standing := model.SerieStanding{
			Alias:   normalize.FormatCategoryAlias(cat.Label),
			Label:   cat.Label,
			Entries: make([]model.SerieEntry, 0, len(cat.Entries)),
		}
		for _, e := range cat.Entries {
			first, last := e.FirstName, e.LastName
			if first == "" && last == "" {
				first, last = normalize.SplitFullName(e.Name)
			}
			pos, _ := parsePlace(e.Place)
			entry := model.SerieEntry{
				Position:    pos,
				FirstName:   normalize.FormatPersonName(first),
				LastName:    normalize.FormatPersonName(last),
				Points:      e.Points,
				RoundPoints: e.RoundPoints,
			}
			if id := normalize.FormatUciID(e.UciID); normalize.ValidUciID(id) {
				entry.UciID = id
			}
			if team, _ := p.c.teams.Lookup(e.Team); team.Name != "" {
				entry.Team = team.Name
			}
			standing.Entries = append(standing.Entries, entry)
		}
		out.Standings = append(out.Standings, standing)
	}
	return out
}
