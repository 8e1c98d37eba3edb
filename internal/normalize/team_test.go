package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTeamCanonicalizer_Aliases(t *testing.T) {
	c, err := DefaultTeamCanonicalizer()
	require.NoError(t, err)

	team, ok := c.Lookup("  escape velocity   cycling ")
	require.True(t, ok)
	require.NotNil(t, team.ID)
	assert.Equal(t, 1, *team.ID)
	assert.Equal(t, "Escape Velocity", team.Name)
}

func TestTeamCanonicalizer_UnknownPassesThrough(t *testing.T) {
	c := NewTeamCanonicalizer([]TeamEntry{{ID: 1, Name: "Known"}})
	unknown := NewUnknownTeams([]string{"independent"})

	team := c.Canonical(" Brand  New Team ", unknown)
	assert.Nil(t, team.ID)
	assert.Equal(t, "Brand New Team", team.Name)

	c.Canonical("Independent", unknown)
	c.Canonical("Brand New Team", unknown)
	c.Canonical("Known", unknown)
	c.Canonical("", unknown)

	assert.Equal(t, []string{"Brand New Team"}, unknown.Names())
}

func TestParseTeamTable_Invalid(t *testing.T) {
	_, err := ParseTeamTable([]byte("- id: [oops"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse team table")
}
