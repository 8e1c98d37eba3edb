package athletes

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/normalize"
	"github.com/velodata/race-pipeline/internal/pipeline"
	"github.com/velodata/race-pipeline/internal/teams"
	"github.com/velodata/race-pipeline/internal/upgrade"
)

const stage = "athletes"

// Inputs is everything a season's aggregation reads.
type Inputs struct {
	Year      int
	Events    []model.CleanEventWithResults
	Snapshots []model.SkillSnapshot
	// Previous is the athlete list of the last run.
	Previous []model.Athlete
	// Races and Points are the season's ledgers from the last run.
	Races  RaceLedger
	Points PointsLedger
	// PastRaces holds the ledgers of other seasons. They feed upgrade
	// inference only.
	PastRaces map[int]RaceLedger
	Teams     teams.History
	Overrides *model.Overrides
}

// Unresolved is a result that could not be attributed to an athlete.
type Unresolved struct {
	EventHash string `json:"event_hash"`
	Category  string `json:"category"`
	UciID     string `json:"uci_id,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Aggregation is the outcome of a season's aggregation.
type Aggregation struct {
	Athletes     []model.Athlete
	Lookup       Lookup
	Duplicates   model.DuplicateReport
	Races        RaceLedger
	Points       PointsLedger
	Teams        teams.History
	UpgradeDates map[string]model.UpgradeDates
	UnknownTeams []string
	Unresolved   []Unresolved
	// Failed counts events whose extraction failed.
	Failed int
}

// Aggregator turns a season's clean documents into athlete documents.
type Aggregator struct {
	Teams       *normalize.TeamCanonicalizer
	Upgrade     upgrade.Config
	Concurrency int
	// Now decides the current season for team carry-forward.
	Now      func() time.Time
	Failures *pipeline.Failures
}

// Aggregate builds identities and the lookup table, extracts every event
// concurrently and merges the extracted records into the season ledgers in
// event order. Teams of record and upgrade estimates are derived from the
// merged ledgers.
func (g *Aggregator) Aggregate(ctx context.Context, in Inputs) Aggregation {
	log := zap.L().With(zap.String("stage", stage), zap.Int("year", in.Year))

	var alternate map[string]string
	if in.Overrides != nil {
		alternate = in.Overrides.AlternateNames
	}

	agg := Aggregation{
		Athletes: BuildAthletes(in.Previous, in.Snapshots, in.Events, in.Overrides),
		Races:    RaceLedger{},
		Points:   PointsLedger{},
		Teams:    teams.History{},
	}
	agg.Lookup, agg.Duplicates = BuildLookup(agg.Athletes, alternate)
	for id, recs := range in.Races {
		agg.Races[id] = append([]model.RaceRecord(nil), recs...)
	}
	for id, entries := range in.Points {
		agg.Points[id] = append([]model.PointsEntry(nil), entries...)
	}
	agg.Races.Rekey(in.Overrides)
	agg.Points.Rekey(in.Overrides)

	outcomes := pipeline.Settle(ctx, g.Concurrency, len(in.Events), func(_ context.Context, i int) ([]Record, error) {
		return ExtractEvent(in.Events[i])
	})

	resolver := &Resolver{Lookup: agg.Lookup, Overrides: in.Overrides}
	for i, o := range outcomes {
		ev := in.Events[i]
		if o.Err != nil {
			agg.Failed++
			g.Failures.Record(stage, ev.Hash, o.Err)
			continue
		}
		for _, rec := range o.Value {
			id, ok := resolver.Resolve(rec.UciID, rec.FirstName, rec.LastName)
			if !ok {
				log.Warn("dropping result with unknown athlete",
					zap.String("event_hash", ev.Hash),
					zap.String("category", rec.Race.Category),
					zap.String("uci_id", rec.UciID),
					zap.String("name", rec.FirstName+" "+rec.LastName),
				)
				agg.Unresolved = append(agg.Unresolved, Unresolved{
					EventHash: ev.Hash,
					Category:  rec.Race.Category,
					UciID:     rec.UciID,
					FirstName: rec.FirstName,
					LastName:  rec.LastName,
				})
				continue
			}
			agg.Races.Merge(id, rec.Race)
			if rec.Points != nil {
				agg.Points.Merge(id, *rec.Points)
			}
		}
	}
	agg.Races.Sort()
	agg.Points.Sort()

	agg.Teams, agg.UnknownTeams = g.resolveTeams(in, agg)
	agg.UpgradeDates = upgrade.InferAll(g.upgradeInputs(in, agg), in.Overrides, g.Upgrade)

	log.Info("aggregated season",
		zap.Int("athletes", len(agg.Athletes)),
		zap.Int("duplicates", len(agg.Duplicates)),
		zap.Int("unresolved", len(agg.Unresolved)),
		zap.Int("unknown_teams", len(agg.UnknownTeams)),
		zap.Int("failed", agg.Failed),
	)
	return agg
}

func (g *Aggregator) resolveTeams(in Inputs, agg Aggregation) (teams.History, []string) {
	// Replaced IDs only fill seasons their replacement has no team for.
	history := teams.History{}
	for _, id := range sortedKeys(in.Teams) {
		target := in.Overrides.ReplacementFor(id)
		for y, team := range in.Teams[id] {
			if _, taken := history[target][y]; taken && id != target {
				continue
			}
			if history[target] == nil {
				history[target] = map[string]*model.Team{}
			}
			history[target][y] = team
		}
	}

	var ignored []string
	if in.Overrides != nil {
		ignored = in.Overrides.IgnoredTeams
	}
	r := &teams.Resolver{
		Canon:     g.Teams,
		Overrides: in.Overrides,
		Unknown:   normalize.NewUnknownTeams(ignored),
	}
	r.ApplyOverrides(history)

	affiliations := make(map[string][]teams.Affiliation, len(agg.Races))
	for id, recs := range agg.Races {
		for _, rec := range recs {
			if yearOf(rec.Date) != in.Year {
				continue
			}
			affiliations[id] = append(affiliations[id], r.Affiliation(rec.Date, rec.EventHash, rec.Team))
		}
	}
	r.ResolveSeason(history, in.Year, affiliations)

	ids := make([]string, 0, len(agg.Athletes))
	for _, a := range agg.Athletes {
		ids = append(ids, a.UciID)
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	r.CarryForward(history, ids, now().Year())
	return history, r.Unknown.Names()
}

func (g *Aggregator) upgradeInputs(in Inputs, agg Aggregation) []upgrade.Athlete {
	snapshots := make(map[string][]upgrade.SnapshotLevel)
	for _, s := range in.Snapshots {
		for _, m := range s.Members {
			if len(m.Levels) == 0 || !normalize.ValidUciID(m.UciID) {
				continue
			}
			id := in.Overrides.ReplacementFor(m.UciID)
			snapshots[id] = append(snapshots[id], upgrade.SnapshotLevel{Date: s.Date, Levels: m.Levels})
		}
	}

	years := make([]int, 0, len(in.PastRaces))
	for y := range in.PastRaces {
		if y != in.Year {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	past := make([]RaceLedger, 0, len(years))
	for _, y := range years {
		l := make(RaceLedger, len(in.PastRaces[y]))
		for id, recs := range in.PastRaces[y] {
			l[id] = append([]model.RaceRecord(nil), recs...)
		}
		l.Rekey(in.Overrides)
		past = append(past, l)
	}

	// Athletes without levels are kept; their manual upgrade dates still apply.
	out := make([]upgrade.Athlete, 0, len(agg.Athletes))
	for _, a := range agg.Athletes {
		var races []model.RaceRecord
		for _, l := range past {
			races = append(races, l[a.UciID]...)
		}
		races = append(races, agg.Races[a.UciID]...)
		out = append(out, upgrade.Athlete{
			UciID:     a.UciID,
			Levels:    a.SkillLevels,
			Races:     races,
			Snapshots: snapshots[a.UciID],
		})
	}
	return out
}
