// Package athletes aggregates a season's results into per-athlete identity,
// race and upgrade-points ledgers, teams of record and upgrade estimates.
package athletes

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/normalize"
)

// Lookup maps a name key ("first|last", lowercase) to a UCI ID.
type Lookup map[string]string

// BuildLookup indexes athletes by name key. A key shared by two UCI IDs is
// removed and every ID that collided on it is reported. Alternate names from
// the overrides are layered on afterwards and always win.
func BuildLookup(athletes []model.Athlete, alternateNames map[string]string) (Lookup, model.DuplicateReport) {
	sorted := append([]model.Athlete(nil), athletes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UciID < sorted[j].UciID })

	lookup := Lookup{}
	duplicates := model.DuplicateReport{}
	collided := make(map[string]bool)

	for _, a := range sorted {
		key := normalize.NameKey(a.FirstName, a.LastName)
		if key == "|" {
			continue
		}
		if collided[key] {
			duplicates[a.UciID] = key
			continue
		}
		existing, ok := lookup[key]
		if !ok {
			lookup[key] = a.UciID
			continue
		}
		if existing == a.UciID {
			continue
		}
		delete(lookup, key)
		collided[key] = true
		duplicates[existing] = key
		duplicates[a.UciID] = key
	}

	keys := make([]string, 0, len(alternateNames))
	for k := range alternateNames {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, raw := range keys {
		key := alternateKey(raw)
		uciID := alternateNames[raw]
		if existing, ok := lookup[key]; ok && existing != uciID {
			zap.L().Warn("alternate name overrides lookup entry",
				zap.String("name_key", key),
				zap.String("previous", existing),
				zap.String("uci_id", uciID),
			)
		} else if collided[key] {
			zap.L().Warn("alternate name overrides duplicate name",
				zap.String("name_key", key),
				zap.String("uci_id", uciID),
			)
		}
		lookup[key] = uciID
	}
	return lookup, duplicates
}

// alternateKey normalizes an operator-written "First|Last" key.
func alternateKey(raw string) string {
	first, last, _ := strings.Cut(raw, "|")
	return normalize.NameKey(first, last)
}

// Resolver turns a result's identity into a UCI ID.
type Resolver struct {
	Lookup    Lookup
	Overrides *model.Overrides
}

// Resolve returns the UCI ID for a result row. A valid ID is used as is; any
// other row is matched by name. Both paths follow the replaced-ID chain. The
// boolean is false when the row cannot be attributed to an athlete.
func (r *Resolver) Resolve(uciID, firstName, lastName string) (string, bool) {
	if normalize.ValidUciID(uciID) {
		return r.Overrides.ReplacementFor(uciID), true
	}
	id, ok := r.Lookup[normalize.NameKey(firstName, lastName)]
	if !ok {
		return "", false
	}
	return r.Overrides.ReplacementFor(id), true
}
