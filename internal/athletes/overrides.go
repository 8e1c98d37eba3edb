package athletes

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/objstore"
)

// DefaultOverridesKey is where the operator keeps the overrides document.
const DefaultOverridesKey = "overrides.json"

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadOverrides reads and validates the overrides document. A missing
// document yields an empty set; an invalid one fails the run.
func LoadOverrides(ctx context.Context, store objstore.Store, key string) (*model.Overrides, error) {
	if key == "" {
		key = DefaultOverridesKey
	}
	o := &model.Overrides{}
	if _, err := objstore.ReadOptionalJSON(ctx, store, key, o); err != nil {
		return nil, eris.Wrap(err, "athletes: read overrides")
	}
	if err := validate.Struct(o); err != nil {
		return nil, eris.Wrapf(err, "athletes: invalid overrides %s", key)
	}
	return o, nil
}
