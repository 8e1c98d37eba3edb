package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/velodata/race-pipeline/internal/objstore"
)

// StageSummary counts what one stage processed.
type StageSummary struct {
	Stage     string `json:"stage"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped,omitempty"`
}

// FailureRecord is the serialized form of a Failure.
type FailureRecord struct {
	Stage string `json:"stage"`
	Item  string `json:"item"`
	Error string `json:"error"`
}

// Report summarizes one pipeline run.
type Report struct {
	RunID      string          `json:"run_id"`
	Year       int             `json:"year"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Stages     []StageSummary  `json:"stages"`
	Failures   []FailureRecord `json:"failures"`
}

// NewReport starts a report with a fresh run ID.
func NewReport(year int, now time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Year:      year,
		StartedAt: now.UTC(),
		Stages:    []StageSummary{},
		Failures:  []FailureRecord{},
	}
}

// AddStage appends a stage summary.
func (r *Report) AddStage(s StageSummary) {
	r.Stages = append(r.Stages, s)
}

// Finish records the failures and the end time.
func (r *Report) Finish(failures []Failure, now time.Time) {
	for _, f := range failures {
		r.Failures = append(r.Failures, FailureRecord{Stage: f.Stage, Item: f.Item, Error: f.Err.Error()})
	}
	r.FinishedAt = now.UTC()
}

// Key is the store key the report is written to.
func (r *Report) Key() string {
	return "reports/" + r.RunID + ".json"
}

// Write stores the report.
func (r *Report) Write(ctx context.Context, store objstore.Store) error {
	if err := objstore.WriteJSON(ctx, store, r.Key(), r); err != nil {
		return eris.Wrap(err, "pipeline: write run report")
	}
	return nil
}
