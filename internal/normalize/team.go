package normalize

import (
	_ "embed"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/velodata/race-pipeline/internal/model"
)

//go:embed teams.yaml
var defaultTeamsYAML []byte

// TeamEntry is one team of the alias table.
type TeamEntry struct {
	ID      int      `yaml:"id"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// TeamCanonicalizer maps team name variants to one canonical team.
type TeamCanonicalizer struct {
	byAlias map[string]TeamEntry
}

// ParseTeamTable decodes a YAML alias table.
func ParseTeamTable(data []byte) ([]TeamEntry, error) {
	var entries []TeamEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "normalize: parse team table")
	}
	return entries, nil
}

// NewTeamCanonicalizer indexes the given alias table.
func NewTeamCanonicalizer(entries []TeamEntry) *TeamCanonicalizer {
	c := &TeamCanonicalizer{byAlias: make(map[string]TeamEntry)}
	for _, e := range entries {
		c.byAlias[teamKey(e.Name)] = e
		for _, alias := range e.Aliases {
			c.byAlias[teamKey(alias)] = e
		}
	}
	return c
}

// DefaultTeamCanonicalizer returns a canonicalizer over the embedded table.
func DefaultTeamCanonicalizer() (*TeamCanonicalizer, error) {
	entries, err := ParseTeamTable(defaultTeamsYAML)
	if err != nil {
		return nil, err
	}
	return NewTeamCanonicalizer(entries), nil
}

func teamKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Lookup returns the canonical team for name. The boolean is false when the
// name is not in the table; the returned team then carries the trimmed input.
func (c *TeamCanonicalizer) Lookup(name string) (model.Team, bool) {
	trimmed := strings.Join(strings.Fields(name), " ")
	if trimmed == "" {
		return model.Team{}, false
	}
	if e, ok := c.byAlias[teamKey(trimmed)]; ok {
		id := e.ID
		return model.Team{ID: &id, Name: e.Name}, true
	}
	return model.Team{Name: trimmed}, false
}

// Canonical resolves name and records it in unknown when it is not mapped.
func (c *TeamCanonicalizer) Canonical(name string, unknown *UnknownTeams) model.Team {
	team, ok := c.Lookup(name)
	if !ok && team.Name != "" && unknown != nil {
		unknown.Add(team.Name)
	}
	return team
}

// UnknownTeams accumulates team names missing from the alias table for
// operator review. It is safe for concurrent use.
type UnknownTeams struct {
	mu      sync.Mutex
	names   map[string]struct{}
	ignored map[string]struct{}
}

// NewUnknownTeams creates an accumulator that drops the ignored names.
func NewUnknownTeams(ignored []string) *UnknownTeams {
	u := &UnknownTeams{
		names:   make(map[string]struct{}),
		ignored: make(map[string]struct{}, len(ignored)),
	}
	for _, name := range ignored {
		u.ignored[teamKey(name)] = struct{}{}
	}
	return u
}

// Add records name unless it is ignored or already known.
func (u *UnknownTeams) Add(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, skip := u.ignored[teamKey(name)]; skip {
		return
	}
	u.names[name] = struct{}{}
}

// Names returns the accumulated names in sorted order.
func (u *UnknownTeams) Names() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.names))
	for name := range u.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
