package upgrade

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velodata/race-pipeline/internal/model"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		label  string
		lo, hi int
		ok     bool
	}{
		{"Cat 3", 3, 3, true},
		{"cat. 4 (W)", 4, 4, true},
		{"Cat 3/4 Men", 3, 4, true},
		{"Category 1-2-3", 1, 3, true},
		{"Catégorie 2", 2, 2, true},
		{"Senior Men 1/2", 1, 2, true},
		{"Women 3", 3, 3, true},
		{"Elite Women", 1, 2, true},
		{"Novice", 5, 5, true},
		{"Master Men 40+", 0, 0, false},
		{"Women 35-39", 0, 0, false},
		{"U17", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			lo, hi, ok := ParseLevel(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func exact(date string, level int) Evidence {
	return Evidence{Date: date, Min: level, Max: level, Confidence: 0.75, Source: SourceRace}
}

func ranged(date string, lo, hi int) Evidence {
	return Evidence{Date: date, Min: lo, Max: hi, Confidence: 0.75, Source: SourceRace}
}

func TestSelect_ExactMatch(t *testing.T) {
	ev := []Evidence{exact("2025-06-01", 3), exact("2024-05-01", 4)}
	est, ok := Select(ev, 3)
	require.True(t, ok)
	assert.Equal(t, "2025-06-01", est.Date)
	assert.Equal(t, 0.75, est.Confidence)
}

func TestSelect_LooseRangeRejected(t *testing.T) {
	// [3,4] is not tight for level 3 and the older evidence says 4.
	ev := []Evidence{ranged("2025-06-01", 3, 4), exact("2025-01-01", 4)}
	_, ok := Select(ev, 3)
	assert.False(t, ok)
}

func TestSelect_TightRange(t *testing.T) {
	ev := []Evidence{ranged("2025-06-01", 2, 3), exact("2025-01-01", 3)}
	est, ok := Select(ev, 3)
	require.True(t, ok)
	assert.Equal(t, "2025-06-01", est.Date)
}

func TestSelect_TightRangeWithInconsistentOlderIsSkipped(t *testing.T) {
	// The range fits, but the next older item says 4, so the scan moves on
	// and finds nothing matching.
	ev := []Evidence{ranged("2025-06-01", 2, 3), exact("2025-01-01", 4)}
	_, ok := Select(ev, 3)
	assert.False(t, ok)

	// Continuing the scan can still hit an older exact match.
	ev = []Evidence{ranged("2025-06-01", 2, 3), exact("2025-03-01", 4), exact("2024-09-01", 3)}
	est, ok := Select(ev, 3)
	require.True(t, ok)
	assert.Equal(t, "2024-09-01", est.Date)
}

func TestSelect_TightRangeAsOldest(t *testing.T) {
	est, ok := Select([]Evidence{ranged("2025-06-01", 1, 2)}, 2)
	require.True(t, ok)
	assert.Equal(t, "2025-06-01", est.Date)
}

func TestSelect_NoEvidence(t *testing.T) {
	_, ok := Select(nil, 3)
	assert.False(t, ok)
}

func TestSort(t *testing.T) {
	ev := []Evidence{
		exact("2024-01-01", 4),
		{Date: "2025-01-01", Min: 3, Max: 3, Confidence: 0.4, Source: SourceSnapshot},
		exact("2025-01-01", 3),
		ranged("2025-01-01", 3, 4),
	}
	Sort(ev)
	assert.Equal(t, "2025-01-01", ev[0].Date)
	assert.Equal(t, 0.75, ev[0].Confidence)
	assert.True(t, ev[0].Exact())
	assert.False(t, ev[1].Exact())
	assert.Equal(t, 0.4, ev[2].Confidence)
	assert.Equal(t, "2024-01-01", ev[3].Date)
}

func TestRaceEvidence_Exclusions(t *testing.T) {
	cfg := DefaultConfig()
	races := []model.RaceRecord{
		{Date: "2025-05-01", Discipline: model.DisciplineRoad, CategoryLabel: "Cat 3", EventType: model.EventTypeA},
		{Date: "2025-05-02", Discipline: model.DisciplineRoad, CategoryLabel: "Cat 2", EventType: model.EventTypeGrassroots},
		{Date: "2025-07-10", Discipline: model.DisciplineRoad, CategoryLabel: "Cat 1", SerieAlias: "bc-superweek"},
		{Date: "2025-10-01", Discipline: model.DisciplineCX, CategoryLabel: "Cat 4"},
		{Date: "2025-05-03", Discipline: model.DisciplineRoad, CategoryLabel: "Masters 50+"},
	}
	ev := RaceEvidence(races, model.DisciplineRoad, cfg)
	require.Len(t, ev, 1)
	assert.Equal(t, "2025-05-01", ev[0].Date)
	assert.Equal(t, 3, ev[0].Min)
	assert.Equal(t, 0.75, ev[0].Confidence)
}

func TestSnapshotEvidence_UnreliableDate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UnreliableSnapshotDate = "2024-01-15"
	snaps := []SnapshotLevel{
		{Date: "2024-01-15", Levels: map[model.Discipline]int{model.DisciplineRoad: 4}},
		{Date: "2025-01-15", Levels: map[model.Discipline]int{model.DisciplineRoad: 3}},
		{Date: "2025-02-15", Levels: map[model.Discipline]int{model.DisciplineCX: 3}},
	}
	ev := SnapshotEvidence(snaps, model.DisciplineRoad, cfg)
	require.Len(t, ev, 2)
	assert.Equal(t, 0.4, ev[0].Confidence)
	assert.Equal(t, 0.9, ev[1].Confidence)
}

func TestInfer(t *testing.T) {
	cfg := DefaultConfig()
	a := Athlete{
		UciID:  "10000000001",
		Levels: map[model.Discipline]int{model.DisciplineRoad: 3, model.DisciplineCX: 5},
		Races: []model.RaceRecord{
			{Date: "2025-04-01", Discipline: model.DisciplineRoad, CategoryLabel: "Cat 4"},
			{Date: "2025-06-01", Discipline: model.DisciplineRoad, CategoryLabel: "Cat 3"},
			{Date: "2025-10-01", Discipline: model.DisciplineCX, CategoryLabel: "Cat 5"},
		},
		Snapshots: []SnapshotLevel{{Date: "2025-07-01", Levels: map[model.Discipline]int{model.DisciplineRoad: 3}}},
	}
	got := Infer(a, nil, cfg)
	// The snapshot is the most recent evidence at the current level.
	assert.Equal(t, model.UpgradeDates{
		model.DisciplineRoad: {Date: "2025-07-01", Confidence: 0.9},
	}, got)
}

func TestInfer_OverrideWins(t *testing.T) {
	ov := &model.Overrides{UpgradeDates: map[string]map[model.Discipline]string{
		"10000000001": {model.DisciplineCX: "2023-10-01"},
	}}
	a := Athlete{UciID: "10000000001", Levels: map[model.Discipline]int{model.DisciplineCX: 5}}
	got := Infer(a, ov, DefaultConfig())
	assert.Equal(t, model.UpgradeDates{model.DisciplineCX: {Date: "2023-10-01", Confidence: 1}}, got)
}

func TestInfer_NoLevel(t *testing.T) {
	a := Athlete{
		UciID: "10000000001",
		Races: []model.RaceRecord{{Date: "2025-06-01", Discipline: model.DisciplineRoad, CategoryLabel: "Cat 3"}},
	}
	assert.Empty(t, Infer(a, nil, DefaultConfig()))
}

func TestInferAll(t *testing.T) {
	athletes := make([]Athlete, 0, 50)
	for i := range 50 {
		level := 3
		if i%2 == 1 {
			level = 0
		}
		athletes = append(athletes, Athlete{
			UciID:  fmt.Sprintf("%011d", i),
			Levels: map[model.Discipline]int{model.DisciplineRoad: level},
			Races:  []model.RaceRecord{{Date: "2025-06-01", Discipline: model.DisciplineRoad, CategoryLabel: "Cat 3"}},
		})
	}
	cfg := DefaultConfig()
	cfg.Concurrency = 4
	got := InferAll(athletes, nil, cfg)
	assert.Len(t, got, 25)
	assert.Equal(t, "2025-06-01", got[athletes[0].UciID][model.DisciplineRoad].Date)
	assert.NotContains(t, got, athletes[1].UciID)
}
