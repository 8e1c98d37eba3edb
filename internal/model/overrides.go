package model

import "strconv"

// Overrides is the operator-maintained correction set. It is loaded once per
// run and never written by the pipeline.
type Overrides struct {
	// ReplacedUciIDs maps an obsolete UCI ID to the ID it was merged into.
	ReplacedUciIDs map[string]string `json:"replaced_uci_ids,omitempty" validate:"dive,keys,numeric,len=11,endkeys,numeric,len=11"`
	// AlternateNames maps a "first|last" name key to a UCI ID.
	AlternateNames map[string]string `json:"alternate_names,omitempty" validate:"dive,keys,contains=0x7C,endkeys,numeric,len=11"`
	// Teams maps UCI ID → year → team. A nil team means "no team that year".
	Teams map[string]map[string]*Team `json:"teams,omitempty"`
	// UpgradeDates maps UCI ID → discipline → date the current level was reached.
	UpgradeDates map[string]map[Discipline]string `json:"upgrade_dates,omitempty"`
	// IgnoredTeams lists raw team names never reported as unknown.
	IgnoredTeams []string `json:"ignored_teams,omitempty"`
}

// TeamOverride returns the override for an athlete and year. The boolean is
// true when an override exists, even if it specifies no team.
func (o *Overrides) TeamOverride(uciID string, year int) (*Team, bool) {
	if o == nil {
		return nil, false
	}
	years, ok := o.Teams[uciID]
	if !ok {
		return nil, false
	}
	team, ok := years[strconv.Itoa(year)]
	return team, ok
}

// UpgradeDate returns the manual upgrade date for an athlete and discipline.
func (o *Overrides) UpgradeDate(uciID string, d Discipline) (string, bool) {
	if o == nil {
		return "", false
	}
	date, ok := o.UpgradeDates[uciID][d]
	return date, ok && date != ""
}

// ReplacementFor follows the replacement chain for a UCI ID. Cycles stop at
// the first repeated ID.
func (o *Overrides) ReplacementFor(uciID string) string {
	if o == nil {
		return uciID
	}
	seen := map[string]bool{uciID: true}
	for {
		next, ok := o.ReplacedUciIDs[uciID]
		if !ok || seen[next] {
			return uciID
		}
		seen[next] = true
		uciID = next
	}
}
