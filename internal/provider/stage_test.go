package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/objstore"
	"github.com/velodata/race-pipeline/internal/pipeline"
	"github.com/velodata/race-pipeline/internal/raw"
)

func seedBundle(t *testing.T, store objstore.Store, manifest raw.Manifest, b model.RawBundle) {
	t.Helper()
	key, data, err := raw.Key(b)
	require.NoError(t, err)
	require.NoError(t, store.WriteFile(context.Background(), key, data))
	manifest[b.Source.ID] = key
}

func TestStage_Run(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	manifest := raw.Manifest{}

	event := `{"type":"event","event":{"name":"Crit","date":"2025-04-06","categories":[{"label":"Open","results":[` + resultsJSON(5, "R") + `]}]}}`
	seedBundle(t, store, manifest, timingBundle(event, critSource))
	seedBundle(t, store, manifest, model.RawBundle{
		Provider: model.ProviderMembership, Kind: model.KindSnapshot, Year: 2025, Date: "2025-03-01",
		Source:  model.Source{ID: "reg", Provider: model.ProviderMembership, Kind: model.KindSnapshot},
		Payload: `[{"uci_id":"10000000001","first_name":"Jane","last_name":"Doe","road_level":4}]`,
	})
	broken := critSource
	broken.ID = "broken"
	seedBundle(t, store, manifest, timingBundle(`{"type":"event"}`, broken))
	require.NoError(t, objstore.WriteJSON(ctx, store, raw.ManifestKey(2025), manifest))

	failures := &pipeline.Failures{}
	s := &Stage{Store: store, Registry: newTestRegistry(t), Concurrency: 2, Failures: failures}
	res, err := s.Run(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, Result{Events: 1, Snapshots: 1, Failed: 1}, res)
	require.Equal(t, 1, failures.Len())
	assert.Equal(t, manifest["broken"], failures.List()[0].Item)

	events, err := LoadEvents(ctx, store, 2025, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, manifest["crit"], events[0].RawKey)
	assert.Equal(t, model.ProviderTimingApp, events[0].Provider)

	snaps, err := LoadSnapshots(ctx, store, nil)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "2025-03-01", snaps[0].Date)

	// Re-running on the same raw data rewrites identical bytes.
	before, err := store.FetchFile(ctx, EventKey(2025, events[0].Hash))
	require.NoError(t, err)
	_, err = s.Run(ctx, 2025)
	require.NoError(t, err)
	after, err := store.FetchFile(ctx, EventKey(2025, events[0].Hash))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadEvents_ReportsUnreadable(t *testing.T) {
	ctx := context.Background()
	store := objstore.NewMemory()
	require.NoError(t, objstore.WriteJSON(ctx, store, EventKey(2025, "b"), model.CleanEventWithResults{Hash: "b", Date: "2025-05-01"}))
	require.NoError(t, objstore.WriteJSON(ctx, store, EventKey(2025, "a"), model.CleanEventWithResults{Hash: "a", Date: "2025-05-01"}))
	require.NoError(t, objstore.WriteJSON(ctx, store, EventKey(2025, "c"), model.CleanEventWithResults{Hash: "c", Date: "2025-04-01"}))
	require.NoError(t, store.WriteFile(ctx, EventKey(2025, "bad"), []byte("{")))

	var bad []string
	events, err := LoadEvents(ctx, store, 2025, func(key string, _ error) { bad = append(bad, key) })
	require.NoError(t, err)
	assert.Equal(t, []string{EventKey(2025, "bad")}, bad)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{events[0].Hash, events[1].Hash, events[2].Hash})
}

func TestLoadEvents_EmptySeason(t *testing.T) {
	events, err := LoadEvents(context.Background(), objstore.NewMemory(), 1999, nil)
	require.NoError(t, err)
	assert.Empty(t, events)
}
