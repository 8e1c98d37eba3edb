// Package provider implements the clean stage: one Parser per provider turns
// a raw bundle into canonical event, serie or snapshot documents.
package provider

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/velodata/race-pipeline/internal/model"
	"github.com/velodata/race-pipeline/internal/normalize"
)

// Document is the canonical output of parsing one bundle. Exactly one field
// is set.
type Document struct {
	Event    *model.CleanEventWithResults
	Serie    *model.CleanSerieWithResults
	Snapshot *model.SkillSnapshot
}

// Key returns the store key of the document.
func (d Document) Key() string {
	switch {
	case d.Event != nil:
		return EventKey(d.Event.Year, d.Event.Hash)
	case d.Serie != nil:
		return SerieKey(d.Serie.Year, d.Serie.Hash)
	case d.Snapshot != nil:
		return SnapshotKey(d.Snapshot.Date)
	}
	return ""
}

// Value returns the document body to persist.
func (d Document) Value() any {
	switch {
	case d.Event != nil:
		return d.Event
	case d.Serie != nil:
		return d.Serie
	}
	return d.Snapshot
}

// EventsPrefix is the directory of a season's clean events.
func EventsPrefix(year int) string { return fmt.Sprintf("clean/%d/events/", year) }

// SeriesPrefix is the directory of a season's clean series.
func SeriesPrefix(year int) string { return fmt.Sprintf("clean/%d/series/", year) }

// SnapshotsPrefix is the directory of membership snapshots.
const SnapshotsPrefix = "clean/snapshots/"

// EventKey is the store key of a clean event.
func EventKey(year int, hash string) string { return EventsPrefix(year) + hash + ".json" }

// SerieKey is the store key of a clean serie.
func SerieKey(year int, hash string) string { return SeriesPrefix(year) + hash + ".json" }

// SnapshotKey is the store key of a membership snapshot.
func SnapshotKey(date string) string { return SnapshotsPrefix + date + ".json" }

// Parser turns one raw bundle into a canonical document.
type Parser interface {
	Parse(bundle model.RawBundle) (Document, error)
}

// ParseError reports a raw payload whose shape is invalid.
type ParseError struct {
	Provider model.Provider
	Key      string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("provider %s: %s", e.Provider, e.Reason)
	if e.Key != "" {
		msg = fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Key, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseError(b model.RawBundle, reason string, err error) *ParseError {
	return &ParseError{Provider: b.Provider, Key: b.Source.ID, Reason: reason, Err: err}
}

// Registry dispatches bundles to the parser registered for their provider.
type Registry struct {
	parsers map[model.Provider]Parser
}

// NewRegistry returns a registry with the parsers of every known provider.
func NewRegistry(teams *normalize.TeamCanonicalizer) *Registry {
	c := &canonicalizer{teams: teams}
	r := &Registry{parsers: make(map[model.Provider]Parser)}
	r.Register(model.ProviderTimingApp, &TimingAppParser{c: c})
	r.Register(model.ProviderHTML, &HTMLParser{c: c})
	r.Register(model.ProviderManual, &ManualParser{c: c})
	r.Register(model.ProviderMembership, &MembershipParser{})
	return r
}

// Register sets the parser for a provider, replacing any previous one.
func (r *Registry) Register(p model.Provider, parser Parser) {
	r.parsers[p] = parser
}

// Parse dispatches on the bundle's provider tag.
func (r *Registry) Parse(b model.RawBundle) (Document, error) {
	parser, ok := r.parsers[b.Provider]
	if !ok {
		return Document{}, parseError(b, "no parser for provider", nil)
	}
	return parser.Parse(b)
}

var validate = validator.New(validator.WithRequiredStructEnabled())
