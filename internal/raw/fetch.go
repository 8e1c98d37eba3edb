package raw

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/velodata/race-pipeline/internal/fetcher"
	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/objstore"
	"github.com/velodata/race-pipeline/internal/pipeline"
	"github.com/velodata/race-pipeline/pkg/membership"
)

const stage = "fetch"

// Stage pulls every source of a season into the raw area.
type Stage struct {
	Store   objstore.Store
	HTTP    fetcher.Fetcher
	Members membership.Client
	// Concurrency bounds parallel downloads. Zero means unbounded.
	Concurrency int
	// SnapshotDate dates membership pulls whose source carries no date.
	SnapshotDate string
	// ScriptID selects the script element holding timing-app payloads.
	ScriptID string
	DryRun   bool
	Failures *pipeline.Failures
}

// Result summarizes a fetch run.
type Result struct {
	Processed int
	Written   int
	Unchanged int
	Deleted   int
	Failed    int
}

// Run fetches every source of year. Only a missing source index fails the
// run; per-source failures are recorded and skipped.
func (s *Stage) Run(ctx context.Context, year int) (Result, error) {
	log := zap.L().With(zap.String("stage", stage), zap.Int("year", year))

	sources, invalid, err := LoadSources(ctx, s.Store, year)
	if err != nil {
		return Result{}, err
	}
	for _, err := range invalid {
		s.Failures.Record(stage, SourcesKey(year), err)
	}

	manifest, err := LoadManifest(ctx, s.Store, year)
	if err != nil {
		return Result{}, err
	}

	outcomes := pipeline.Settle(ctx, s.Concurrency, len(sources), func(ctx context.Context, i int) (model.RawBundle, error) {
		return s.fetch(ctx, year, sources[i])
	})

	res := Result{Failed: len(invalid)}
	next := Manifest{}
	for id, key := range manifest {
		next[id] = key
	}
	for i, o := range outcomes {
		src := sources[i]
		if o.Err != nil {
			res.Failed++
			s.Failures.Record(stage, src.ID, o.Err)
			continue
		}
		res.Processed++

		key, data, err := Key(o.Value)
		if err != nil {
			res.Failed++
			s.Failures.Record(stage, src.ID, err)
			continue
		}
		if manifest[src.ID] == key {
			res.Unchanged++
			continue
		}
		if !s.DryRun {
			if err := s.Store.WriteFile(ctx, key, data); err != nil {
				res.Failed++
				s.Failures.Record(stage, key, eris.Wrap(err, "raw: write bundle"))
				continue
			}
		}
		next[src.ID] = key
		res.Written++
		log.Info("stored raw payload", zap.String("source", src.ID), zap.String("key", key))
	}

	if s.DryRun {
		return res, nil
	}
	for _, key := range superseded(manifest, next) {
		if err := s.Store.DeleteFile(ctx, key); err != nil {
			s.Failures.Record(stage, key, eris.Wrap(err, "raw: delete superseded bundle"))
			continue
		}
		res.Deleted++
	}
	if err := objstore.WriteJSON(ctx, s.Store, ManifestKey(year), next); err != nil {
		s.Failures.Record(stage, ManifestKey(year), eris.Wrap(err, "raw: write manifest"))
	}
	return res, nil
}

// superseded returns raw keys referenced by the old manifest but no longer by
// the new one, sorted.
func superseded(old, next Manifest) []string {
	live := make(map[string]bool, len(next))
	for _, key := range next {
		live[key] = true
	}
	var out []string
	for _, key := range old {
		if !live[key] {
			live[key] = true
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Stage) fetch(ctx context.Context, year int, src model.Source) (model.RawBundle, error) {
	bundle := model.RawBundle{
		Provider: src.Provider,
		Kind:     src.Kind,
		Year:     year,
		Source:   src,
	}

	switch src.Provider {
	case model.ProviderTimingApp:
		page, err := s.page(ctx, src.URL)
		if err != nil {
			return bundle, err
		}
		payload, err := fetcher.ExtractEmbeddedJSON(page, s.ScriptID)
		if err != nil {
			return bundle, eris.Wrapf(err, "raw: extract payload from %s", src.URL)
		}
		bundle.Payload = payload

	case model.ProviderHTML:
		page, err := s.page(ctx, src.URL)
		if err != nil {
			return bundle, err
		}
		bundle.Payload = string(page)

	case model.ProviderManual:
		data, err := s.Store.FetchFile(ctx, ManualKey(year, src.File))
		if err != nil {
			return bundle, eris.Wrapf(err, "raw: read manual file %s", src.File)
		}
		bundle.FileName = src.File
		if strings.HasSuffix(strings.ToLower(src.File), ".xlsx") {
			bundle.Encoding = model.PayloadBase64
			bundle.Payload = base64.StdEncoding.EncodeToString(data)
		} else {
			bundle.Payload = string(data)
		}

	case model.ProviderMembership:
		if s.Members == nil {
			return bundle, eris.New("raw: membership client not configured")
		}
		bundle.Date = src.Date
		if bundle.Date == "" {
			bundle.Date = s.SnapshotDate
		}
		if bundle.Date == "" {
			return bundle, eris.New("raw: membership pull needs a snapshot date")
		}
		members, err := s.Members.Members(ctx)
		if err != nil {
			return bundle, eris.Wrap(err, "raw: pull membership registry")
		}
		data, err := objstore.Encode(members)
		if err != nil {
			return bundle, err
		}
		bundle.Payload = string(data)

	default:
		return bundle, eris.Errorf("raw: unsupported provider %q", src.Provider)
	}
	return bundle, nil
}

func (s *Stage) page(ctx context.Context, url string) ([]byte, error) {
	if s.HTTP == nil {
		return nil, eris.New("raw: http fetcher not configured")
	}
	body, err := s.HTTP.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return fetcher.DecodeHTML(body)
}

// Key encodes a bundle and derives its content-hash key. Equal bundles give
// equal keys.
func Key(b model.RawBundle) (string, []byte, error) {
	data, err := objstore.Encode(b)
	if err != nil {
		return "", nil, eris.Wrap(err, "raw: encode bundle")
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("raw/%d/%s.json", b.Year, hex.EncodeToString(sum[:])[:16]), data, nil
}
