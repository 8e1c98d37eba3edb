// Package raw implements the fetch stage: it reads a season's source index,
// pulls every source from its provider and stores the payloads, unmodified,
// under content-hash keys.
package raw

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/objstore"
)

// SourcesKey is the store key of a season's source index.
func SourcesKey(year int) string {
	return fmt.Sprintf("sources/%d.json", year)
}

// ManifestKey is the store key of the source ID → raw key map.
func ManifestKey(year int) string {
	return fmt.Sprintf("raw/%d/manifest.json", year)
}

// ManualKey is where operator-supplied files for a season live.
func ManualKey(year int, file string) string {
	return fmt.Sprintf("manual/%d/%s", year, file)
}

// Manifest maps each source ID to the raw key of its current payload.
type Manifest map[string]string

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadSources reads and validates the source index of a season. A missing
// index is an error: nothing downstream can run without it. Entries failing
// validation are returned separately so one bad line does not block the rest.
func LoadSources(ctx context.Context, store objstore.Store, year int) ([]model.Source, []error, error) {
	var sources []model.Source
	if err := objstore.ReadJSON(ctx, store, SourcesKey(year), &sources); err != nil {
		return nil, nil, eris.Wrapf(err, "raw: load source index %d", year)
	}

	valid := make([]model.Source, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	var invalid []error
	for i, src := range sources {
		if err := validate.Struct(src); err != nil {
			invalid = append(invalid, eris.Wrapf(err, "raw: source %d (%q) invalid", i, src.ID))
			continue
		}
		if seen[src.ID] {
			invalid = append(invalid, eris.Errorf("raw: duplicate source id %q", src.ID))
			continue
		}
		seen[src.ID] = true
		valid = append(valid, src)
	}
	return valid, invalid, nil
}

// LoadManifest reads the manifest of a season; a missing one is empty.
func LoadManifest(ctx context.Context, store objstore.Store, year int) (Manifest, error) {
	m := Manifest{}
	if _, err := objstore.ReadOptionalJSON(ctx, store, ManifestKey(year), &m); err != nil {
		return nil, eris.Wrapf(err, "raw: load manifest %d", year)
	}
	return m, nil
}
