// Package teams resolves each athlete's team of record per season from the
// teams they raced for.
package teams

import (
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/normalize"
)

// Rule names how a team of record was decided.
type Rule string

const (
	RuleOverride     Rule = "override"
	RuleNone         Rule = "none"
	RuleSingle       Rule = "single"
	RuleLatestPair   Rule = "latest-pair"
	RuleRecurring    Rule = "recurring"
	RuleSecondLatest Rule = "second-latest"
	RuleUnresolved   Rule = "unresolved"
	RuleCarried      Rule = "carried-forward"
)

// Affiliation is the team an athlete raced for at one event.
type Affiliation struct {
	Date      string
	EventHash string
	Team      model.Team
}

// Resolution is the outcome for one athlete and season. Team is nil when no
// team is assigned.
type Resolution struct {
	Team       *model.Team
	Rule       Rule
	Candidates []string
}

// Resolve picks the team of record for uciID in year. An override for the
// athlete and year decides outright, even one naming no team. Otherwise,
// with the affiliations in date order:
//
//   - no team: none assigned
//   - one distinct team: that team
//   - the two latest races share a team: that team
//   - leaving out the latest team, the first team seen at least twice
//   - the second-latest team, if seen at least twice outside the latest team
//   - otherwise unresolved, with the candidates logged
func Resolve(uciID string, year int, affiliations []Affiliation, overrides *model.Overrides) Resolution {
	if team, ok := overrides.TeamOverride(uciID, year); ok {
		return Resolution{Team: team, Rule: RuleOverride}
	}

	seq := make([]Affiliation, 0, len(affiliations))
	for _, a := range affiliations {
		if strings.TrimSpace(a.Team.Name) != "" {
			seq = append(seq, a)
		}
	}
	sort.SliceStable(seq, func(i, j int) bool {
		if seq[i].Date != seq[j].Date {
			return seq[i].Date < seq[j].Date
		}
		return seq[i].EventHash < seq[j].EventHash
	})

	distinct := distinctTeams(seq)
	switch len(distinct) {
	case 0:
		return Resolution{Rule: RuleNone}
	case 1:
		return Resolution{Team: teamPtr(distinct[0]), Rule: RuleSingle}
	}

	last := seq[len(seq)-1].Team
	secondLast := seq[len(seq)-2].Team
	if last.Key() == secondLast.Key() {
		return Resolution{Team: teamPtr(last), Rule: RuleLatestPair}
	}

	counts := make(map[string]int)
	var previous []model.Team
	for _, a := range seq {
		if a.Team.Key() == last.Key() {
			continue
		}
		previous = append(previous, a.Team)
		counts[a.Team.Key()]++
	}
	for _, t := range previous {
		if counts[t.Key()] >= 2 {
			return Resolution{Team: teamPtr(t), Rule: RuleRecurring}
		}
	}
	// Unreachable after the loop above, listed so the rule ladder stays complete.
	if counts[secondLast.Key()] >= 2 {
		return Resolution{Team: teamPtr(secondLast), Rule: RuleSecondLatest}
	}

	names := make([]string, len(distinct))
	for i, t := range distinct {
		names[i] = t.Name
	}
	zap.L().Warn("cannot resolve team of record",
		zap.String("uci_id", uciID),
		zap.Int("year", year),
		zap.Strings("candidates", names),
	)
	return Resolution{Rule: RuleUnresolved, Candidates: names}
}

// distinctTeams lists teams in order of first appearance.
func distinctTeams(seq []Affiliation) []model.Team {
	seen := make(map[string]bool)
	var out []model.Team
	for _, a := range seq {
		if !seen[a.Team.Key()] {
			seen[a.Team.Key()] = true
			out = append(out, a.Team)
		}
	}
	return out
}

func teamPtr(t model.Team) *model.Team {
	return &t
}

// History maps UCI ID → year → team of record. Years without a team are
// absent.
type History map[string]map[string]*model.Team

// Set records team for uciID and year; a nil team clears the year.
func (h History) Set(uciID string, year int, team *model.Team) {
	y := strconv.Itoa(year)
	if team == nil {
		if years, ok := h[uciID]; ok {
			delete(years, y)
			if len(years) == 0 {
				delete(h, uciID)
			}
		}
		return
	}
	years, ok := h[uciID]
	if !ok {
		years = make(map[string]*model.Team)
		h[uciID] = years
	}
	years[y] = team
}

// Get returns the team of uciID in year.
func (h History) Get(uciID string, year int) *model.Team {
	return h[uciID][strconv.Itoa(year)]
}

// Latest returns the most recent team before year.
func (h History) Latest(uciID string, before int) (*model.Team, int) {
	bestYear := 0
	var best *model.Team
	for y, team := range h[uciID] {
		n, err := strconv.Atoi(y)
		if err != nil || n >= before || team == nil {
			continue
		}
		if n > bestYear {
			bestYear, best = n, team
		}
	}
	return best, bestYear
}

// Resolver runs team resolution for a whole season.
type Resolver struct {
	Canon     *normalize.TeamCanonicalizer
	Overrides *model.Overrides
	Unknown   *normalize.UnknownTeams
}

// Affiliation canonicalizes a raced team name, recording unknown names.
func (r *Resolver) Affiliation(date, eventHash, teamName string) Affiliation {
	var team model.Team
	switch {
	case strings.TrimSpace(teamName) == "":
	case r.Canon != nil:
		team = r.Canon.Canonical(teamName, r.Unknown)
	default:
		team = model.Team{Name: strings.TrimSpace(teamName)}
	}
	return Affiliation{Date: date, EventHash: eventHash, Team: team}
}

// ApplyOverrides writes every team override into history, for every season
// it names. An override without a team removes that season's team.
func (r *Resolver) ApplyOverrides(history History) {
	if r.Overrides == nil {
		return
	}
	for id, years := range r.Overrides.Teams {
		for y, team := range years {
			year, err := strconv.Atoi(y)
			if err != nil {
				zap.L().Warn("ignoring team override with invalid year",
					zap.String("uci_id", id),
					zap.String("year", y),
				)
				continue
			}
			history.Set(id, year, team)
		}
	}
}

// ResolveSeason resolves year for every athlete in affiliations and writes
// the outcome into history. It returns the per-athlete resolutions.
func (r *Resolver) ResolveSeason(history History, year int, affiliations map[string][]Affiliation) map[string]Resolution {
	ids := make([]string, 0, len(affiliations))
	for id := range affiliations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]Resolution, len(ids))
	for _, id := range ids {
		res := Resolve(id, year, affiliations[id], r.Overrides)
		out[id] = res
		history.Set(id, year, res.Team)
	}
	return out
}

// CarryForward gives every athlete an entry for currentYear. Athletes
// without a current-year team keep their latest earlier team, unless an
// override settles the current year.
func (r *Resolver) CarryForward(history History, uciIDs []string, currentYear int) {
	for _, id := range uciIDs {
		if team, ok := r.Overrides.TeamOverride(id, currentYear); ok {
			history.Set(id, currentYear, team)
			continue
		}
		if history.Get(id, currentYear) != nil {
			continue
		}
		if team, _ := history.Latest(id, currentYear); team != nil {
			history.Set(id, currentYear, team)
		}
	}
}
