package upgrade

import (
	"sort"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"github.com/velodata/race-pipeline/internal/model"
)

// Config tunes the inference.
type Config struct {
	RaceConfidence               float64  `mapstructure:"race_confidence"`
	SnapshotConfidence           float64  `mapstructure:"snapshot_confidence"`
	UnreliableSnapshotConfidence float64  `mapstructure:"unreliable_snapshot_confidence"`
	UnreliableSnapshotDate       string   `mapstructure:"unreliable_snapshot_date"`
	ExcludedSeries               []string `mapstructure:"excluded_series"`
	// Concurrency bounds parallel per-athlete work. Zero uses GOMAXPROCS.
	Concurrency int `mapstructure:"concurrency"`
}

// DefaultConfig returns the standard weights.
func DefaultConfig() Config {
	return Config{
		RaceConfidence:               0.75,
		SnapshotConfidence:           0.9,
		UnreliableSnapshotConfidence: 0.4,
		ExcludedSeries:               []string{"bc-superweek"},
	}
}

// Sort orders evidence most recent first. Same-day evidence keeps the more
// confident item first, then exact levels before ranges.
func Sort(ev []Evidence) {
	sort.SliceStable(ev, func(i, j int) bool {
		a, b := ev[i], ev[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Exact() && !b.Exact()
	})
}

// Select scans evidence, most recent first, for the date the athlete reached
// current. An exact level equal to current matches. A range matches only if it
// contains current, its upper bound is below current+1, and the next older
// item does not contradict current. Evidence must already be sorted.
func Select(ev []Evidence, current int) (model.UpgradeEstimate, bool) {
	for i, e := range ev {
		if e.Exact() {
			if e.Min == current {
				return model.UpgradeEstimate{Date: e.Date, Confidence: e.Confidence}, true
			}
			continue
		}
		if !e.Contains(current) || e.Max >= current+1 {
			continue
		}
		if i+1 < len(ev) && inconsistent(ev[i+1], current) {
			continue
		}
		return model.UpgradeEstimate{Date: e.Date, Confidence: e.Confidence}, true
	}
	return model.UpgradeEstimate{}, false
}

func inconsistent(older Evidence, current int) bool {
	if older.Exact() {
		return older.Min != current
	}
	return !older.Contains(current)
}

// Athlete is the per-athlete input of the inference.
type Athlete struct {
	UciID     string
	Levels    map[model.Discipline]int
	Races     []model.RaceRecord
	Snapshots []SnapshotLevel
}

// Infer estimates upgrade dates for one athlete in every discipline.
// Disciplines without an estimate are absent from the result.
func Infer(a Athlete, overrides *model.Overrides, cfg Config) model.UpgradeDates {
	out := model.UpgradeDates{}
	for _, d := range model.Disciplines {
		if date, ok := overrides.UpgradeDate(a.UciID, d); ok {
			out[d] = model.UpgradeEstimate{Date: date, Confidence: 1}
			continue
		}
		current := a.Levels[d]
		if current <= 0 || current >= LowestLevel {
			continue
		}

		ev := append(RaceEvidence(a.Races, d, cfg), SnapshotEvidence(a.Snapshots, d, cfg)...)
		Sort(ev)
		if est, ok := Select(ev, current); ok {
			out[d] = est
			continue
		}
		zap.L().Debug("no upgrade evidence matches current level",
			zap.String("uci_id", a.UciID),
			zap.String("discipline", string(d)),
			zap.Int("level", current),
			zap.Int("evidence", len(ev)),
		)
	}
	return out
}

// InferAll runs Infer for every athlete in parallel. Results are keyed by UCI
// ID; athletes with no estimate are left out.
func InferAll(athletes []Athlete, overrides *model.Overrides, cfg Config) map[string]model.UpgradeDates {
	mapper := iter.Mapper[Athlete, model.UpgradeDates]{MaxGoroutines: cfg.Concurrency}
	estimates := mapper.Map(athletes, func(a *Athlete) model.UpgradeDates {
		return Infer(*a, overrides, cfg)
	})

	out := make(map[string]model.UpgradeDates, len(athletes))
	for i, est := range estimates {
		if len(est) > 0 {
			out[athletes[i].UciID] = est
		}
	}
	return out
}
