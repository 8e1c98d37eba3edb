package provider

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/normalize"
	"github.com/velodata/race-pipeline/internal/objstore"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	teams, err := normalize.DefaultTeamCanonicalizer()
	require.NoError(t, err)
	return NewRegistry(teams)
}

// resultsJSON builds a timing-app category with n finishers.
func resultsJSON(n int, prefix string) string {
	rows := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, fmt.Sprintf(`{"place":"%d","first_name":"rider","last_name":"%s%d","team":"EVCC"}`, i, prefix, i))
	}
	return strings.Join(rows, ",")
}

func timingBundle(payload string, src model.Source) model.RawBundle {
	return model.RawBundle{Provider: model.ProviderTimingApp, Kind: src.Kind, Year: 2025, Source: src, Payload: payload}
}

var critSource = model.Source{
	ID:                  "crit",
	Provider:            model.ProviderTimingApp,
	Kind:                model.KindEvent,
	Organizer:           "racer-sportif",
	SanctionedEventType: model.EventTypeA,
	SerieAlias:          "spring-series",
	Location:            model.Location{City: "vancouver", Province: "british columbia"},
}

func TestTimingAppParser_Event(t *testing.T) {
	payload := `{"type":"event","event":{"name":"Spring  Crit","date":"2025-04-06","categories":[
		{"label":"Cat 3 (Men)","results":[` + resultsJSON(9, "Smith") + `,
			{"place":"DNF","name":"DOE, JANE","uci_id":"100 0000 0001"},
			{"place":"DNS","first_name":"Al","last_name":"Roe"}]}
	]}}`

	doc, err := newTestRegistry(t).Parse(timingBundle(payload, critSource))
	require.NoError(t, err)
	require.NotNil(t, doc.Event)
	ev := doc.Event

	assert.Equal(t, model.EventHash(2025, "racer-sportif", model.KindEvent, "2025-04-06"), ev.Hash)
	assert.Equal(t, "clean/2025/events/"+ev.Hash+".json", doc.Key())
	assert.Equal(t, "Spring Crit", ev.Name)
	assert.Equal(t, model.DisciplineRoad, ev.Discipline)
	assert.Equal(t, "BC", ev.Location.Province)
	assert.Equal(t, "Vancouver", ev.Location.City)

	require.Len(t, ev.Categories, 1)
	cat := ev.Categories[0]
	assert.Equal(t, "cat-3-(m)", cat.Alias)
	assert.Equal(t, model.GenderMale, cat.Gender)
	assert.Equal(t, 10, cat.Starters)
	assert.Equal(t, 9, cat.Finishers)
	require.Len(t, cat.Results, 11)

	first := cat.Results[0]
	assert.Equal(t, "Rider", first.FirstName)
	assert.Equal(t, "Escape Velocity", first.Team)
	require.NotNil(t, first.UpgradePoints)
	// 10 starters, band [10,14].
	assert.Equal(t, 10, *first.UpgradePoints)

	dnf := cat.Results[9]
	assert.Equal(t, model.StatusDNF, dnf.Status)
	assert.Equal(t, "Jane", dnf.FirstName)
	assert.Equal(t, "Doe", dnf.LastName)
	assert.Equal(t, "10000000001", dnf.UciID)
	assert.Nil(t, dnf.UpgradePoints)
	assert.Equal(t, model.StatusDNS, cat.Results[10].Status)
}

func TestTimingAppParser_Idempotent(t *testing.T) {
	payload := `{"type":"event","event":{"name":"Crit","date":"2025-04-06","categories":[{"label":"Open","results":[` + resultsJSON(6, "R") + `]}]}}`
	reg := newTestRegistry(t)

	d1, err := reg.Parse(timingBundle(payload, critSource))
	require.NoError(t, err)
	d2, err := reg.Parse(timingBundle(payload, critSource))
	require.NoError(t, err)

	b1, err := objstore.Encode(d1.Value())
	require.NoError(t, err)
	b2, err := objstore.Encode(d2.Value())
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestTimingAppParser_InvalidShapes(t *testing.T) {
	reg := newTestRegistry(t)
	cases := map[string]string{
		"malformed":       `{"type":`,
		"unknown type":    `{"type":"podcast"}`,
		"missing event":   `{"type":"event"}`,
		"no categories":   `{"type":"event","event":{"name":"x","categories":[]}}`,
		"nameless rider":  `{"type":"event","event":{"name":"x","date":"2025-01-01","categories":[{"label":"A","results":[{"place":"1"}]}]}}`,
		"kind mismatch":   `{"type":"serie","serie":{"name":"x","categories":[{"label":"A"}]}}`,
		"bad date format": `{"type":"event","event":{"name":"x","date":"06/04/2025","categories":[{"label":"A"}]}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Parse(timingBundle(payload, critSource))
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, model.ProviderTimingApp, pe.Provider)
			assert.Equal(t, "crit", pe.Key)
		})
	}
}

func TestTimingAppParser_Serie(t *testing.T) {
	src := model.Source{ID: "series", Provider: model.ProviderTimingApp, Kind: model.KindSerie, Organizer: "racer-sportif", SerieAlias: "spring-series"}
	payload := `{"type":"serie","serie":{"name":"Spring Series","rounds":["r1","r2"],"categories":[
		{"label":"Cat 1/2","entries":[{"place":"1","name":"SMITH, Bob","team":"vcc","points":40,"round_points":[20,20]}]}]}}`

	doc, err := newTestRegistry(t).Parse(timingBundle(payload, src))
	require.NoError(t, err)
	require.NotNil(t, doc.Serie)
	s := doc.Serie
	assert.Equal(t, model.EventHash(2025, "racer-sportif", model.KindSerie, "spring-series"), s.Hash)
	assert.Equal(t, "clean/2025/series/"+s.Hash+".json", doc.Key())
	require.Len(t, s.Standings, 1)
	assert.Equal(t, "cat-1-2", s.Standings[0].Alias)
	entry := s.Standings[0].Entries[0]
	assert.Equal(t, "Bob", entry.FirstName)
	assert.Equal(t, "Smith", entry.LastName)
	assert.Equal(t, "Vancouver Cycling Club", entry.Team)
	assert.Equal(t, 40, entry.Points)
}

func TestAssignPoints_Umbrella(t *testing.T) {
	src := critSource
	src.CombinedCategories = map[string][]string{"Cat 3/4": {"Cat 3", "Cat 4"}}
	payload := `{"type":"event","event":{"name":"Crit","date":"2025-04-06","categories":[
		{"label":"Cat 3","results":[` + resultsJSON(4, "T") + `]},
		{"label":"Cat 4","results":[` + resultsJSON(4, "F") + `]}]}}`

	doc, err := newTestRegistry(t).Parse(timingBundle(payload, src))
	require.NoError(t, err)
	cats := doc.Event.Categories
	require.Len(t, cats, 3)

	// Alone, 4 starters fall below every band; combined, 8 starters use [8,9].
	assert.Equal(t, "cat-3-4", cats[0].Umbrella)
	require.NotNil(t, cats[0].Results[0].UpgradePoints)
	assert.Equal(t, 8, *cats[0].Results[0].UpgradePoints)
	require.NotNil(t, cats[1].Results[1].UpgradePoints)
	assert.Equal(t, 6, *cats[1].Results[1].UpgradePoints)

	umbrella := cats[2]
	assert.True(t, umbrella.IsUmbrella)
	assert.Equal(t, 8, umbrella.Starters)
	for _, r := range umbrella.Results {
		assert.Nil(t, r.UpgradePoints)
	}
}

func TestAssignPoints_NoRegime(t *testing.T) {
	cats := []model.EventCategory{{Alias: "open", Results: []model.AthleteResult{{Position: intPtr(1), Status: model.StatusFinisher}}}}
	AssignPoints(cats, model.EventTypeNone)
	assert.Nil(t, cats[0].Results[0].UpgradePoints)
}

func intPtr(n int) *int { return &n }

const htmlPage = `<html><body>
<h2>Elite Men</h2>
<table>
<tr><th>Place</th><th>Rider</th><th>Team</th><th>Prov</th></tr>
<tr><td>1</td><td>Jane Doe</td><td>Hardcore</td><td>Alberta</td></tr>
<tr><td>2</td><td>John Roe</td><td></td><td>bc</td></tr>
</table>
<table><tr><th>Sponsor</th></tr><tr><td>Acme</td></tr></table>
<table>
<caption>Cat 4 Women</caption>
<tr><th>Pos</th><th>Last Name</th><th>First Name</th></tr>
<tr><td>1</td><td>SMITH</td><td>ann</td></tr>
</table>
</body></html>`

func TestHTMLParser(t *testing.T) {
	src := model.Source{ID: "page", Provider: model.ProviderHTML, Kind: model.KindEvent, Organizer: "vwc", Name: "Hill Climb", Date: "2025-07-01", Discipline: model.DisciplineRoad}
	doc, err := newTestRegistry(t).Parse(model.RawBundle{Provider: model.ProviderHTML, Kind: model.KindEvent, Year: 2025, Source: src, Payload: htmlPage})
	require.NoError(t, err)

	ev := doc.Event
	require.Len(t, ev.Categories, 2)
	assert.Equal(t, "elite-men", ev.Categories[0].Alias)
	assert.Equal(t, "Hardcore Bikes", ev.Categories[0].Results[0].Team)
	assert.Equal(t, "AB", ev.Categories[0].Results[0].Province)
	assert.Equal(t, "BC", ev.Categories[0].Results[1].Province)
	assert.Equal(t, "cat-4-women", ev.Categories[1].Alias)
	assert.Equal(t, model.GenderFemale, ev.Categories[1].Gender)
	assert.Equal(t, "Ann", ev.Categories[1].Results[0].FirstName)
	assert.Equal(t, "Smith", ev.Categories[1].Results[0].LastName)
	// No sanctioning: no points.
	assert.Nil(t, ev.Categories[0].Results[0].UpgradePoints)
}

func TestHTMLParser_NoTables(t *testing.T) {
	src := model.Source{ID: "page", Provider: model.ProviderHTML, Kind: model.KindEvent, Organizer: "vwc", Date: "2025-07-01", Name: "x"}
	_, err := newTestRegistry(t).Parse(model.RawBundle{Provider: model.ProviderHTML, Kind: model.KindEvent, Year: 2025, Source: src, Payload: "<p>soon</p>"})
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "no result table found", pe.Reason)
}

func TestManualParser_CSV(t *testing.T) {
	csv := "Category,Place,First Name,Last Name,UCI ID,Team\n" +
		"Master A,1,bob,smith,10000000002,Lapdogs\n" +
		"Master A,DNF,Rae,Lee,,\n" +
		"Master B,1,Kim,Park,123,\n"
	src := model.Source{ID: "sheet", Provider: model.ProviderManual, Kind: model.KindEvent, File: "masters.csv", Organizer: "vwc", Name: "Masters Provincials", Date: "2025-08-10", Discipline: model.DisciplineCX}

	doc, err := newTestRegistry(t).Parse(model.RawBundle{Provider: model.ProviderManual, Kind: model.KindEvent, Year: 2025, Source: src, FileName: "masters.csv", Payload: csv})
	require.NoError(t, err)
	ev := doc.Event
	assert.Equal(t, model.DisciplineCX, ev.Discipline)
	require.Len(t, ev.Categories, 2)
	assert.Equal(t, "master-a", ev.Categories[0].Alias)
	assert.Len(t, ev.Categories[0].Results, 2)
	assert.Equal(t, "10000000002", ev.Categories[0].Results[0].UciID)
	assert.Equal(t, "Lapdogs Cycling Club", ev.Categories[0].Results[0].Team)
	// Invalid UCI IDs are dropped rather than published.
	assert.Empty(t, ev.Categories[1].Results[0].UciID)
}

func TestManualParser_MissingColumns(t *testing.T) {
	src := model.Source{ID: "sheet", Provider: model.ProviderManual, Kind: model.KindEvent, File: "x.csv", Organizer: "vwc", Name: "x", Date: "2025-08-10"}
	_, err := newTestRegistry(t).Parse(model.RawBundle{Provider: model.ProviderManual, Kind: model.KindEvent, Year: 2025, Source: src, FileName: "x.csv", Payload: "Foo,Bar\n1,2\n"})
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestMembershipParser(t *testing.T) {
	payload := `[
		{"uci_id":"10000000002","first_name":"BOB","last_name":"smith","province":"Ontario","road_level":3,"road_age_category":"Master B"},
		{"uci_id":"10000000001","first_name":"Jane","last_name":"Doe","cx_level":2},
		{"uci_id":"","first_name":"No","last_name":"Licence"}
	]`
	doc, err := newTestRegistry(t).Parse(model.RawBundle{Provider: model.ProviderMembership, Kind: model.KindSnapshot, Year: 2025, Date: "2025-03-01", Payload: payload})
	require.NoError(t, err)
	require.NotNil(t, doc.Snapshot)
	assert.Equal(t, "clean/snapshots/2025-03-01.json", doc.Key())

	members := doc.Snapshot.Members
	require.Len(t, members, 2)
	assert.Equal(t, "10000000001", members[0].UciID)
	assert.Equal(t, map[model.Discipline]int{model.DisciplineCX: 2}, members[0].Levels)
	assert.Equal(t, "Bob", members[1].FirstName)
	assert.Equal(t, "ON", members[1].Province)
	assert.Equal(t, "Master B", members[1].AgeCategories[model.DisciplineRoad])
}

func TestMembershipParser_NoDate(t *testing.T) {
	_, err := newTestRegistry(t).Parse(model.RawBundle{Provider: model.ProviderMembership, Kind: model.KindSnapshot, Payload: "[]"})
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	_, err := newTestRegistry(t).Parse(model.RawBundle{Provider: "fax"})
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "no parser")
}
