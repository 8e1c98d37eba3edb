// Package upgrade estimates when an athlete last changed skill category,
// from race category labels and membership snapshots.
package upgrade

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/velodata/race-pipeline/internal/model"
)

// LowestLevel is the entry category; nobody is upgraded into it.
const LowestLevel = 5

// Source tags where a piece of evidence came from.
type Source string

const (
	SourceRace     Source = "race"
	SourceSnapshot Source = "snapshot"
)

// Evidence is one dated observation of an athlete's level: an exact level,
// or a range [Min, Max] when the category label covered several levels.
type Evidence struct {
	Date       string
	Min        int
	Max        int
	Confidence float64
	Source     Source
}

// Exact reports whether the evidence names a single level.
func (e Evidence) Exact() bool { return e.Min == e.Max }

// Contains reports whether level lies within the evidence.
func (e Evidence) Contains(level int) bool { return e.Min <= level && level <= e.Max }

var (
	levelRe  = regexp.MustCompile(`\b(?:cat(?:egory|egorie)?|c|senior|sr|men|women|m|w)\.?\s*([1-5](?:\s*[/&,+-]\s*[1-5])*)\b`)
	digitRe  = regexp.MustCompile(`[1-5]`)
	eliteRe  = regexp.MustCompile(`\belite\b`)
	noviceRe = regexp.MustCompile(`\b(?:novice|beginner|debutant)\b`)
)

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ParseLevel reads the skill level out of a category label. "Cat 3" gives
// [3,3]; "Cat 3/4" gives [3,4]; "Elite" gives [1,2]. The boolean is false when
// the label names no level.
func ParseLevel(label string) (lo, hi int, ok bool) {
	l, _, err := transform.String(foldAccents, strings.ToLower(label))
	if err != nil {
		l = strings.ToLower(label)
	}

	if m := levelRe.FindStringSubmatch(l); m != nil {
		var levels []int
		for _, d := range digitRe.FindAllString(m[1], -1) {
			n, _ := strconv.Atoi(d)
			levels = append(levels, n)
		}
		return slices.Min(levels), slices.Max(levels), true
	}
	if eliteRe.MatchString(l) {
		return 1, 2, true
	}
	if noviceRe.MatchString(l) {
		return LowestLevel, LowestLevel, true
	}
	return 0, 0, false
}

// RaceEvidence turns an athlete's races in discipline d into evidence.
// Grassroots events and excluded series say nothing reliable about category
// and are skipped, as are labels naming no level.
func RaceEvidence(races []model.RaceRecord, d model.Discipline, cfg Config) []Evidence {
	var out []Evidence
	for _, r := range races {
		if r.Discipline != d || r.EventType == model.EventTypeGrassroots {
			continue
		}
		if r.SerieAlias != "" && slices.Contains(cfg.ExcludedSeries, r.SerieAlias) {
			continue
		}
		label := r.CategoryLabel
		if label == "" {
			label = r.Category
		}
		lo, hi, ok := ParseLevel(label)
		if !ok {
			continue
		}
		out = append(out, Evidence{Date: r.Date, Min: lo, Max: hi, Confidence: cfg.RaceConfidence, Source: SourceRace})
	}
	return out
}

// SnapshotLevel is an athlete's registry level at a snapshot date.
type SnapshotLevel struct {
	Date   string
	Levels map[model.Discipline]int
}

// SnapshotEvidence turns registry snapshots into evidence for discipline d.
// The configured unreliable snapshot date gets the lower confidence.
func SnapshotEvidence(snaps []SnapshotLevel, d model.Discipline, cfg Config) []Evidence {
	var out []Evidence
	for _, s := range snaps {
		level, ok := s.Levels[d]
		if !ok || level <= 0 {
			continue
		}
		conf := cfg.SnapshotConfidence
		if s.Date == cfg.UnreliableSnapshotDate {
			conf = cfg.UnreliableSnapshotConfidence
		}
		out = append(out, Evidence{Date: s.Date, Min: level, Max: level, Confidence: conf, Source: SourceSnapshot})
	}
	return out
}
