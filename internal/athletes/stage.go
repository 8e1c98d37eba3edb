package athletes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/objstore"
	"github.com/velodata/race-pipeline/internal/pipeline"
	"github.com/velodata/race-pipeline/internal/provider"
	"github.com/velodata/race-pipeline/internal/teams"
)

// Document keys written by the stage.
const (
	Prefix          = "athletes/"
	AthletesKey     = "athletes/athletes.json"
	LookupKey       = "athletes/lookup.json"
	DuplicatesKey   = "athletes/duplicates.json"
	TeamsKey        = "athletes/teams.json"
	UpgradeDatesKey = "athletes/upgrade-dates.json"
	UnknownTeamsKey = "athletes/unknown-teams.json"
)

// RacesKey is the race ledger of a season.
func RacesKey(year int) string { return fmt.Sprintf("athletes/%d/races.json", year) }

// PointsKey is the upgrade-points ledger of a season.
func PointsKey(year int) string { return fmt.Sprintf("athletes/%d/upgrade-points.json", year) }

// UnresolvedKey lists the season's results no athlete could be found for.
func UnresolvedKey(year int) string { return fmt.Sprintf("athletes/%d/unresolved.json", year) }

// Stage runs the athlete aggregation of a season against the store.
type Stage struct {
	Store        objstore.Store
	Aggregator   *Aggregator
	OverridesKey string
	DryRun       bool
	Failures     *pipeline.Failures
}

// Result summarizes an aggregation run.
type Result struct {
	Athletes     int
	Duplicates   int
	Unresolved   int
	UnknownTeams int
	Failed       int
}

// Run loads the season's inputs, aggregates them and writes the athlete
// documents. Only a missing or invalid overrides document, or a failing
// listing, stops the run; unreadable events and failed writes are recorded.
func (s *Stage) Run(ctx context.Context, year int) (Result, error) {
	var res Result
	onError := func(key string, err error) {
		res.Failed++
		s.Failures.Record(stage, key, err)
	}

	in, err := s.load(ctx, year, onError)
	if err != nil {
		return res, err
	}
	agg := s.Aggregator.Aggregate(ctx, in)
	res.Failed += agg.Failed
	res.Athletes = len(agg.Athletes)
	res.Duplicates = len(agg.Duplicates)
	res.Unresolved = len(agg.Unresolved)
	res.UnknownTeams = len(agg.UnknownTeams)

	if s.DryRun {
		return res, nil
	}
	unresolved := agg.Unresolved
	if unresolved == nil {
		unresolved = []Unresolved{}
	}
	docs := []struct {
		key string
		v   any
	}{
		{AthletesKey, agg.Athletes},
		{LookupKey, agg.Lookup},
		{DuplicatesKey, agg.Duplicates},
		{RacesKey(year), agg.Races},
		{PointsKey(year), agg.Points},
		{TeamsKey, agg.Teams},
		{UpgradeDatesKey, agg.UpgradeDates},
		{UnknownTeamsKey, orEmpty(agg.UnknownTeams)},
		{UnresolvedKey(year), unresolved},
	}
	for _, d := range docs {
		if err := objstore.WriteJSON(ctx, s.Store, d.key, d.v); err != nil {
			onError(d.key, eris.Wrap(err, "athletes: write"))
		}
	}
	return res, nil
}

func orEmpty(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

func (s *Stage) load(ctx context.Context, year int, onError func(string, error)) (Inputs, error) {
	in := Inputs{
		Year:      year,
		Races:     RaceLedger{},
		Points:    PointsLedger{},
		PastRaces: map[int]RaceLedger{},
		Teams:     teams.History{},
	}

	overrides, err := LoadOverrides(ctx, s.Store, s.OverridesKey)
	if err != nil {
		return in, err
	}
	in.Overrides = overrides

	if in.Events, err = provider.LoadEvents(ctx, s.Store, year, onError); err != nil {
		return in, err
	}
	if in.Snapshots, err = provider.LoadSnapshots(ctx, s.Store, onError); err != nil {
		return in, err
	}

	optional := []struct {
		key string
		v   any
	}{
		{AthletesKey, &in.Previous},
		{RacesKey(year), &in.Races},
		{PointsKey(year), &in.Points},
		{TeamsKey, &in.Teams},
	}
	for _, o := range optional {
		if _, err := objstore.ReadOptionalJSON(ctx, s.Store, o.key, o.v); err != nil {
			// A corrupt ledger is rebuilt from this season's events.
			onError(o.key, err)
		}
	}

	past, err := LoadPastRaces(ctx, s.Store, year, onError)
	if err != nil {
		return in, err
	}
	in.PastRaces = past
	return in, nil
}

// Seasons lists the years that have athlete ledgers, in ascending order.
func Seasons(ctx context.Context, store objstore.Store) ([]int, error) {
	listing, err := store.FetchDirectoryFiles(ctx, Prefix)
	if err != nil {
		return nil, eris.Wrap(err, "athletes: list seasons")
	}
	var years []int
	for _, dir := range listing.Subdirectories {
		y, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(dir, Prefix), "/"))
		if err == nil {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years, nil
}

// LoadPastRaces reads the race ledgers of every season except year.
func LoadPastRaces(ctx context.Context, store objstore.Store, year int, onError func(string, error)) (map[int]RaceLedger, error) {
	years, err := Seasons(ctx, store)
	if err != nil {
		return nil, err
	}
	out := make(map[int]RaceLedger)
	for _, y := range years {
		if y == year {
			continue
		}
		ledger := RaceLedger{}
		found, err := objstore.ReadOptionalJSON(ctx, store, RacesKey(y), &ledger)
		if err != nil {
			onError(RacesKey(y), err)
			continue
		}
		if found {
			out[y] = ledger
		}
	}
	zap.L().Debug("loaded past race ledgers", zap.Int("seasons", len(out)))
	return out, nil
}

// LoadUpgradeDates reads the upgrade estimates of the last aggregation.
func LoadUpgradeDates(ctx context.Context, store objstore.Store) (map[string]model.UpgradeDates, error) {
	out := map[string]model.UpgradeDates{}
	if _, err := objstore.ReadOptionalJSON(ctx, store, UpgradeDatesKey, &out); err != nil {
		return nil, err
	}
	return out, nil
}
