// Package unpack publishes clean events and series without their
// internal-only fields.
package unpack

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/objstore"
	"github.com/velodata/race-pipeline/internal/pipeline"
	"github.com/velodata/race-pipeline/internal/provider"
)

const stage = "unpack"

// CategorySummary describes one category of an event listing.
type CategorySummary struct {
	Alias      string `json:"alias"`
	Label      string `json:"label"`
	Starters   int    `json:"starters"`
	Finishers  int    `json:"finishers"`
	IsUmbrella bool   `json:"is_umbrella,omitempty"`
}

// EventSummary is one line of a season's event listing.
type EventSummary struct {
	Hash                string                    `json:"hash"`
	Date                string                    `json:"date"`
	Name                string                    `json:"name"`
	Organizer           string                    `json:"organizer"`
	Discipline          model.Discipline          `json:"discipline"`
	SanctionedEventType model.SanctionedEventType `json:"sanctioned_event_type"`
	SerieAlias          string                    `json:"serie_alias,omitempty"`
	Location            model.Location            `json:"location"`
	Categories          []CategorySummary         `json:"categories"`
}

// EventKey is the public key of an event with its results.
func EventKey(year int, hash string) string {
	return fmt.Sprintf("public/%d/events/%s.json", year, hash)
}

// EventsKey is the public key of a season's event listing.
func EventsKey(year int) string {
	return fmt.Sprintf("public/%d/events.json", year)
}

// SerieKey is the public key of a serie's standings.
func SerieKey(year int, hash string) string {
	return fmt.Sprintf("public/%d/series/%s.json", year, hash)
}

// StripEvent returns a copy of ev without internal-only fields.
func StripEvent(ev model.CleanEventWithResults) model.CleanEventWithResults {
	ev.Provider = ""
	ev.RawKey = ""
	ev.SourceURL = ""
	cats := make([]model.EventCategory, len(ev.Categories))
	for i, c := range ev.Categories {
		results := make([]model.AthleteResult, len(c.Results))
		for j, r := range c.Results {
			r.ParticipantID = ""
			results[j] = r
		}
		c.Results = results
		cats[i] = c
	}
	ev.Categories = cats
	return ev
}

// StripSerie returns a copy of s without internal-only fields.
func StripSerie(s model.CleanSerieWithResults) model.CleanSerieWithResults {
	s.Provider = ""
	s.RawKey = ""
	return s
}

// Summarize builds the listing line of an event.
func Summarize(ev model.CleanEventWithResults) EventSummary {
	sum := EventSummary{
		Hash:                ev.Hash,
		Date:                ev.Date,
		Name:                ev.Name,
		Organizer:           ev.Organizer,
		Discipline:          ev.Discipline,
		SanctionedEventType: ev.SanctionedEventType,
		SerieAlias:          ev.SerieAlias,
		Location:            ev.Location,
		Categories:          make([]CategorySummary, 0, len(ev.Categories)),
	}
	for _, c := range ev.Categories {
		sum.Categories = append(sum.Categories, CategorySummary{
			Alias:      c.Alias,
			Label:      c.Label,
			Starters:   c.Starters,
			Finishers:  c.Finishers,
			IsUmbrella: c.IsUmbrella,
		})
	}
	return sum
}

// Stage writes the public event and serie documents of a season.
type Stage struct {
	Store    objstore.Store
	DryRun   bool
	Failures *pipeline.Failures
}

// Result summarizes an unpack run.
type Result struct {
	Events int
	Series int
	Failed int
}

// Run unpacks every clean event and serie of year. Unreadable documents and
// failed writes are recorded; the rest still publish.
func (s *Stage) Run(ctx context.Context, year int) (Result, error) {
	var res Result
	onError := func(key string, err error) {
		res.Failed++
		s.Failures.Record(stage, key, err)
	}

	events, err := provider.LoadEvents(ctx, s.Store, year, onError)
	if err != nil {
		return res, err
	}
	series, err := provider.LoadSeries(ctx, s.Store, year, onError)
	if err != nil {
		return res, err
	}

	summaries := make([]EventSummary, 0, len(events))
	for _, ev := range events {
		summaries = append(summaries, Summarize(ev))
		if s.write(ctx, EventKey(year, ev.Hash), StripEvent(ev), onError) {
			res.Events++
		}
	}
	s.write(ctx, EventsKey(year), summaries, onError)

	for _, se := range series {
		if s.write(ctx, SerieKey(year, se.Hash), StripSerie(se), onError) {
			res.Series++
		}
	}

	zap.L().Info("unpack stage done",
		zap.String("stage", stage),
		zap.Int("year", year),
		zap.Int("events", res.Events),
		zap.Int("series", res.Series),
	)
	return res, nil
}

func (s *Stage) write(ctx context.Context, key string, v any, onError func(string, error)) bool {
	if s.DryRun {
		return true
	}
	if err := objstore.WriteJSON(ctx, s.Store, key, v); err != nil {
		onError(key, eris.Wrap(err, "unpack: write"))
		return false
	}
	return true
}
