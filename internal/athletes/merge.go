package athletes

import (
	"sort"

	"github.com/velodata/race-pipeline/internal/model"
)

// RaceLedger maps UCI ID to the athlete's race records, at most one per event.
type RaceLedger map[string][]model.RaceRecord

// Merge adds rec for uciID. A record for the same event replaces the
// existing one.
func (l RaceLedger) Merge(uciID string, rec model.RaceRecord) {
	list := l[uciID]
	for i := range list {
		if list[i].EventHash == rec.EventHash {
			list[i] = rec
			return
		}
	}
	l[uciID] = append(list, rec)
}

// Sort orders every athlete's records by date, then event hash.
func (l RaceLedger) Sort() {
	for _, list := range l {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Date != list[j].Date {
				return list[i].Date < list[j].Date
			}
			return list[i].EventHash < list[j].EventHash
		})
	}
}

// Rekey moves the records of replaced UCI IDs onto their replacement.
func (l RaceLedger) Rekey(overrides *model.Overrides) {
	for _, old := range sortedKeys(l) {
		next := overrides.ReplacementFor(old)
		if next == old {
			continue
		}
		for _, rec := range l[old] {
			l.Merge(next, rec)
		}
		delete(l, old)
	}
}

// PointsLedger maps UCI ID to upgrade-points entries, at most one per event.
type PointsLedger map[string][]model.PointsEntry

// Merge adds e for uciID. An entry for the same event replaces the existing
// one.
func (l PointsLedger) Merge(uciID string, e model.PointsEntry) {
	list := l[uciID]
	for i := range list {
		if list[i].EventHash == e.EventHash {
			list[i] = e
			return
		}
	}
	l[uciID] = append(list, e)
}

// Sort orders every athlete's entries by date, then event hash.
func (l PointsLedger) Sort() {
	for _, list := range l {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Date != list[j].Date {
				return list[i].Date < list[j].Date
			}
			return list[i].EventHash < list[j].EventHash
		})
	}
}

// Rekey moves the entries of replaced UCI IDs onto their replacement.
func (l PointsLedger) Rekey(overrides *model.Overrides) {
	for _, old := range sortedKeys(l) {
		next := overrides.ReplacementFor(old)
		if next == old {
			continue
		}
		for _, e := range l[old] {
			l.Merge(next, e)
		}
		delete(l, old)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
