package provider

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/objstore"
	"github.com/velodata/race-pipeline/internal/pipeline"
	"github.com/velodata/race-pipeline/internal/raw"
)

const stage = "clean"

// Stage parses every current raw bundle of a season into clean documents.
type Stage struct {
	Store       objstore.Store
	Registry    *Registry
	Concurrency int
	DryRun      bool
	Failures    *pipeline.Failures
}

// Result summarizes a clean run.
type Result struct {
	Events    int
	Series    int
	Snapshots int
	Failed    int
}

// Run parses the bundles listed in the season's raw manifest. Bundles are
// processed in source ID order so that, when two sources produce the same
// document key, the outcome does not depend on scheduling.
func (s *Stage) Run(ctx context.Context, year int) (Result, error) {
	log := zap.L().With(zap.String("stage", stage), zap.Int("year", year))

	manifest, err := raw.LoadManifest(ctx, s.Store, year)
	if err != nil {
		return Result{}, err
	}
	ids := make([]string, 0, len(manifest))
	for id := range manifest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	outcomes := pipeline.Settle(ctx, s.Concurrency, len(ids), func(ctx context.Context, i int) (Document, error) {
		return s.parse(ctx, manifest[ids[i]])
	})

	var res Result
	written := make(map[string]string)
	for i, o := range outcomes {
		key := manifest[ids[i]]
		if o.Err != nil {
			res.Failed++
			s.Failures.Record(stage, key, o.Err)
			continue
		}
		docKey := o.Value.Key()
		if prev, ok := written[docKey]; ok {
			log.Warn("two sources produce the same document, keeping the later",
				zap.String("document", docKey),
				zap.String("previous", prev),
				zap.String("raw_key", key),
			)
		}
		written[docKey] = key
		if !s.DryRun {
			if err := objstore.WriteJSON(ctx, s.Store, docKey, o.Value.Value()); err != nil {
				res.Failed++
				s.Failures.Record(stage, docKey, eris.Wrap(err, "provider: write clean document"))
				continue
			}
		}
		switch {
		case o.Value.Event != nil:
			res.Events++
		case o.Value.Serie != nil:
			res.Series++
		default:
			res.Snapshots++
		}
	}
	log.Info("clean stage done",
		zap.Int("events", res.Events),
		zap.Int("series", res.Series),
		zap.Int("snapshots", res.Snapshots),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Stage) parse(ctx context.Context, key string) (Document, error) {
	var bundle model.RawBundle
	if err := objstore.ReadJSON(ctx, s.Store, key, &bundle); err != nil {
		return Document{}, eris.Wrapf(err, "provider: read bundle %s", key)
	}
	doc, err := s.Registry.Parse(bundle)
	if err != nil {
		return Document{}, err
	}
	switch {
	case doc.Event != nil:
		doc.Event.RawKey = key
	case doc.Serie != nil:
		doc.Serie.RawKey = key
	}
	return doc, nil
}

// LoadEvents reads every clean event of a season, sorted by date then hash.
// Unreadable documents are reported through onError and skipped.
func LoadEvents(ctx context.Context, store objstore.Store, year int, onError func(key string, err error)) ([]model.CleanEventWithResults, error) {
	var events []model.CleanEventWithResults
	err := loadDir(ctx, store, EventsPrefix(year), onError, func(ctx context.Context, key string) error {
		var ev model.CleanEventWithResults
		if err := objstore.ReadJSON(ctx, store, key, &ev); err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Hash < events[j].Hash
	})
	return events, err
}

// LoadSeries reads every clean serie of a season, sorted by alias then hash.
func LoadSeries(ctx context.Context, store objstore.Store, year int, onError func(key string, err error)) ([]model.CleanSerieWithResults, error) {
	var series []model.CleanSerieWithResults
	err := loadDir(ctx, store, SeriesPrefix(year), onError, func(ctx context.Context, key string) error {
		var s model.CleanSerieWithResults
		if err := objstore.ReadJSON(ctx, store, key, &s); err != nil {
			return err
		}
		series = append(series, s)
		return nil
	})
	sort.SliceStable(series, func(i, j int) bool {
		if series[i].Alias != series[j].Alias {
			return series[i].Alias < series[j].Alias
		}
		return series[i].Hash < series[j].Hash
	})
	return series, err
}

// LoadSnapshots reads every membership snapshot, oldest first.
func LoadSnapshots(ctx context.Context, store objstore.Store, onError func(key string, err error)) ([]model.SkillSnapshot, error) {
	var snaps []model.SkillSnapshot
	err := loadDir(ctx, store, SnapshotsPrefix, onError, func(ctx context.Context, key string) error {
		var s model.SkillSnapshot
		if err := objstore.ReadJSON(ctx, store, key, &s); err != nil {
			return err
		}
		snaps = append(snaps, s)
		return nil
	})
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].Date < snaps[j].Date })
	return snaps, err
}

// loadDir applies read to every JSON document directly under prefix. Listing
// failures are returned; per-document failures go to onError.
func loadDir(ctx context.Context, store objstore.Store, prefix string, onError func(string, error), read func(context.Context, string) error) error {
	listing, err := store.FetchDirectoryFiles(ctx, prefix)
	if err != nil {
		return eris.Wrapf(err, "provider: list %s", prefix)
	}
	for _, key := range listing.Files {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		if err := read(ctx, key); err != nil && onError != nil {
			onError(key, err)
		}
	}
	return nil
}
