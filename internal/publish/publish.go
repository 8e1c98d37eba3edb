// Package publish compiles the public athlete list and per-athlete profiles
// from the aggregated athlete documents.
package publish

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/velodata/race-pipeline/internal/athletes"
	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/objstore"
	"github.com/velodata/race-pipeline/internal/pipeline"
	"github.com/velodata/race-pipeline/internal/teams"
)

const stage = "publish"

const (
	ListKey        = "public/athletes.json"
	ProfilesPrefix = "public/athletes/"
)

// ProfileKey is the public profile of one athlete.
func ProfileKey(uciID string) string { return ProfilesPrefix + uciID + ".json" }

// Summary is one line of the public athlete list.
type Summary struct {
	UciID       string                   `json:"uci_id"`
	FirstName   string                   `json:"first_name"`
	LastName    string                   `json:"last_name"`
	Gender      model.Gender             `json:"gender,omitempty"`
	Province    string                   `json:"province,omitempty"`
	Team        *model.Team              `json:"team,omitempty"`
	SkillLevels map[model.Discipline]int `json:"skill_levels,omitempty"`
}

// PointsTotal sums an athlete's upgrade points for one season, discipline
// and scoring regime.
type PointsTotal struct {
	Year       int              `json:"year"`
	Discipline model.Discipline `json:"discipline"`
	Type       model.PointsType `json:"type"`
	Points     int              `json:"points"`
	Events     int              `json:"events"`
}

// Profile is the public document of one athlete.
type Profile struct {
	model.Athlete
	Teams        map[string]*model.Team `json:"teams"`
	Races        []model.RaceRecord     `json:"races"`
	Points       []model.PointsEntry    `json:"points"`
	PointsTotals []PointsTotal          `json:"points_totals"`
	UpgradeDates model.UpgradeDates     `json:"upgrade_dates,omitempty"`
}

// Data is everything publication reads.
type Data struct {
	Athletes     []model.Athlete
	Teams        teams.History
	Races        map[int]athletes.RaceLedger
	Points       map[int]athletes.PointsLedger
	UpgradeDates map[string]model.UpgradeDates
}

// List builds the public athlete list, sorted by UCI ID. Team is the
// athlete's team for currentYear.
func List(d Data, currentYear int) []Summary {
	out := make([]Summary, 0, len(d.Athletes))
	for _, a := range d.Athletes {
		out = append(out, Summary{
			UciID:       a.UciID,
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			Gender:      a.Gender,
			Province:    a.Province,
			Team:        d.Teams.Get(a.UciID, currentYear),
			SkillLevels: a.SkillLevels,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UciID < out[j].UciID })
	return out
}

// BuildProfile joins an athlete's ledgers across seasons. Races and points
// are ordered by date then event hash.
func BuildProfile(a model.Athlete, d Data) Profile {
	p := Profile{
		Athlete:      a,
		Teams:        d.Teams[a.UciID],
		Races:        []model.RaceRecord{},
		Points:       []model.PointsEntry{},
		PointsTotals: []PointsTotal{},
		UpgradeDates: d.UpgradeDates[a.UciID],
	}
	if p.Teams == nil {
		p.Teams = map[string]*model.Team{}
	}

	for _, y := range seasons(d) {
		p.Races = append(p.Races, d.Races[y][a.UciID]...)
		p.Points = append(p.Points, d.Points[y][a.UciID]...)
	}
	sort.SliceStable(p.Races, func(i, j int) bool {
		if p.Races[i].Date != p.Races[j].Date {
			return p.Races[i].Date < p.Races[j].Date
		}
		return p.Races[i].EventHash < p.Races[j].EventHash
	})
	sort.SliceStable(p.Points, func(i, j int) bool {
		if p.Points[i].Date != p.Points[j].Date {
			return p.Points[i].Date < p.Points[j].Date
		}
		return p.Points[i].EventHash < p.Points[j].EventHash
	})
	p.PointsTotals = totals(p.Races, p.Points)
	return p
}

// totals sums points per season, discipline and regime. The discipline
// comes from the race record of the same event; entries without points are
// left out.
func totals(races []model.RaceRecord, entries []model.PointsEntry) []PointsTotal {
	discipline := make(map[string]model.Discipline, len(races))
	for _, r := range races {
		discipline[r.EventHash] = r.Discipline
	}

	type key struct {
		year int
		d    model.Discipline
		t    model.PointsType
	}
	sums := make(map[key]*PointsTotal)
	for _, e := range entries {
		if e.Points == nil {
			continue
		}
		year, _ := strconv.Atoi(e.Date[:min(4, len(e.Date))])
		k := key{year, discipline[e.EventHash], e.Type}
		t, ok := sums[k]
		if !ok {
			t = &PointsTotal{Year: year, Discipline: k.d, Type: k.t}
			sums[k] = t
		}
		t.Points += *e.Points
		t.Events++
	}

	out := make([]PointsTotal, 0, len(sums))
	for _, t := range sums {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Discipline != b.Discipline {
			return a.Discipline < b.Discipline
		}
		return a.Type < b.Type
	})
	return out
}

func seasons(d Data) []int {
	seen := make(map[int]bool)
	for y := range d.Races {
		seen[y] = true
	}
	for y := range d.Points {
		seen[y] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Stage writes the public athlete documents.
type Stage struct {
	Store objstore.Store
	// OverridesKey locates the overrides document. Empty means the default.
	OverridesKey string
	Now          func() time.Time
	DryRun       bool
	Failures     *pipeline.Failures
}

// Result summarizes a publication run.
type Result struct {
	Profiles int
	Removed  int
	Failed   int
}

// Run publishes the list and one profile per athlete, and removes profiles
// of athletes no longer listed, such as replaced UCI IDs.
func (s *Stage) Run(ctx context.Context) (Result, error) {
	var res Result
	onError := func(key string, err error) {
		res.Failed++
		s.Failures.Record(stage, key, err)
	}

	d, err := Load(ctx, s.Store, s.OverridesKey, onError)
	if err != nil {
		return res, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	s.write(ctx, ListKey, List(d, now().Year()), onError)
	keep := make(map[string]bool, len(d.Athletes))
	for _, a := range d.Athletes {
		key := ProfileKey(a.UciID)
		keep[key] = true
		if s.write(ctx, key, BuildProfile(a, d), onError) {
			res.Profiles++
		}
	}

	listing, err := s.Store.FetchDirectoryFiles(ctx, ProfilesPrefix)
	if err != nil {
		onError(ProfilesPrefix, eris.Wrap(err, "publish: list profiles"))
	}
	for _, key := range listing.Files {
		if keep[key] || !strings.HasSuffix(key, ".json") {
			continue
		}
		if !s.DryRun {
			if err := s.Store.DeleteFile(ctx, key); err != nil {
				onError(key, eris.Wrap(err, "publish: delete stale profile"))
				continue
			}
		}
		res.Removed++
	}

	zap.L().Info("publish stage done",
		zap.String("stage", stage),
		zap.Int("profiles", res.Profiles),
		zap.Int("removed", res.Removed),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Stage) write(ctx context.Context, key string, v any, onError func(string, error)) bool {
	if s.DryRun {
		return true
	}
	if err := objstore.WriteJSON(ctx, s.Store, key, v); err != nil {
		onError(key, eris.Wrap(err, "publish: write"))
		return false
	}
	return true
}

// Load reads the aggregated athlete documents of every season. Ledgers of
// earlier seasons may still be keyed by replaced UCI IDs; they are moved onto
// the replacement here.
func Load(ctx context.Context, store objstore.Store, overridesKey string, onError func(string, error)) (Data, error) {
	d := Data{
		Teams:        teams.History{},
		Races:        map[int]athletes.RaceLedger{},
		Points:       map[int]athletes.PointsLedger{},
		UpgradeDates: map[string]model.UpgradeDates{},
	}
	if err := objstore.ReadJSON(ctx, store, athletes.AthletesKey, &d.Athletes); err != nil {
		return d, eris.Wrap(err, "publish: read athletes")
	}
	if _, err := objstore.ReadOptionalJSON(ctx, store, athletes.TeamsKey, &d.Teams); err != nil {
		onError(athletes.TeamsKey, err)
	}
	dates, err := athletes.LoadUpgradeDates(ctx, store)
	if err != nil {
		onError(athletes.UpgradeDatesKey, err)
	} else {
		d.UpgradeDates = dates
	}

	overrides, err := athletes.LoadOverrides(ctx, store, overridesKey)
	if err != nil {
		return d, err
	}

	years, err := athletes.Seasons(ctx, store)
	if err != nil {
		return d, err
	}
	for _, y := range years {
		races := athletes.RaceLedger{}
		if _, err := objstore.ReadOptionalJSON(ctx, store, athletes.RacesKey(y), &races); err != nil {
			onError(athletes.RacesKey(y), err)
		} else {
			races.Rekey(overrides)
			races.Sort()
			d.Races[y] = races
		}
		pts := athletes.PointsLedger{}
		if _, err := objstore.ReadOptionalJSON(ctx, store, athletes.PointsKey(y), &pts); err != nil {
			onError(athletes.PointsKey(y), err)
		} else {
			pts.Rekey(overrides)
			pts.Sort()
			d.Points[y] = pts
		}
	}
	return d, nil
}
