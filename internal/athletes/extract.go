package athletes

import (
	"github.com/rotisserie/eris"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/points"
)

// Record is one result of an event flattened for aggregation, still keyed
// by the identity the result carried.
type Record struct {
	UciID     string
	FirstName string
	LastName  string
	Gender    model.Gender
	City      string
	Province  string
	Race      model.RaceRecord
	// Points is nil when the event's classification scores no points.
	Points *model.PointsEntry
}

// ExtractEvent flattens every result of ev outside umbrella categories.
// Members of an umbrella category report the umbrella's combined field size.
func ExtractEvent(ev model.CleanEventWithResults) ([]Record, error) {
	if ev.Hash == "" {
		return nil, eris.New("athletes: event has no hash")
	}
	if ev.Date == "" {
		return nil, eris.Errorf("athletes: event %s has no date", ev.Hash)
	}

	umbrellaSize := make(map[string]int)
	for _, cat := range ev.Categories {
		if cat.IsUmbrella {
			umbrellaSize[cat.Alias] = points.FieldSize(cat.Results)
		}
	}
	pointsType, scored := points.TypeFor(ev.SanctionedEventType)

	var out []Record
	for _, cat := range ev.Categories {
		if cat.IsUmbrella {
			continue
		}
		fieldSize := points.FieldSize(cat.Results)
		if size, ok := umbrellaSize[cat.Umbrella]; ok {
			fieldSize = size
		}
		for _, r := range cat.Results {
			gender := r.Gender
			if gender == "" {
				gender = cat.Gender
			}
			rec := Record{
				UciID:     r.UciID,
				FirstName: r.FirstName,
				LastName:  r.LastName,
				Gender:    gender,
				City:      r.City,
				Province:  r.Province,
				Race: model.RaceRecord{
					EventHash:     ev.Hash,
					Date:          ev.Date,
					EventName:     ev.Name,
					Discipline:    ev.Discipline,
					Category:      cat.Alias,
					CategoryLabel: cat.Label,
					EventType:     ev.SanctionedEventType,
					SerieAlias:    ev.SerieAlias,
					Team:          r.Team,
					Position:      r.Position,
					Status:        r.Status,
					FieldSize:     fieldSize,
					UpgradePoints: r.UpgradePoints,
				},
			}
			if scored && r.Position != nil && r.Status == model.StatusFinisher {
				rec.Points = &model.PointsEntry{
					EventHash: ev.Hash,
					Date:      ev.Date,
					Category:  cat.Alias,
					Position:  *r.Position,
					FieldSize: fieldSize,
					Points:    r.UpgradePoints,
					Type:      pointsType,
				}
			}
			out = append(out, rec)
		}
	}
	return out, nil
}
