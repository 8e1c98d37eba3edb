package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/velodata/race-pipeline/internal/athletes"
	"github.com/velodata/race-pipeline/internal/fetcher"
	"github.com/velodata/race-pipeline/internal/normalize"
	"github.com/velodata/race-pipeline/internal/objstore"
	"github.com/velodata/race-pipeline/internal/pipeline"
	"github.com/velodata/race-pipeline/internal/provider"
	"github.com/velodata/race-pipeline/internal/publish"
	"github.com/velodata/race-pipeline/internal/raw"
	"github.com/velodata/race-pipeline/internal/unpack"
	"github.com/velodata/race-pipeline/pkg/membership"
)

// now is the clock used for the current season and report timestamps.
var now = time.Now

// session holds what every stage command shares: the store, the run's
// failures and its report.
type session struct {
	store    objstore.Store
	year     int
	failures *pipeline.Failures
	report   *pipeline.Report
}

func startSession(ctx context.Context, mode string) (*session, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	store, err := objstore.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	s := &session{
		store:    store,
		year:     cfg.Pipeline.Year,
		failures: &pipeline.Failures{},
		report:   pipeline.NewReport(cfg.Pipeline.Year, now()),
	}
	zap.L().Info("starting run",
		zap.String("mode", mode),
		zap.String("run_id", s.report.RunID),
		zap.Int("year", s.year),
		zap.Bool("dry_run", flagDryRun),
	)
	return s, nil
}

// finish writes the run report and releases the store.
func (s *session) finish(ctx context.Context) error {
	defer s.store.Close() //nolint:errcheck

	s.report.Finish(s.failures.List(), now())
	zap.L().Info("run finished",
		zap.String("run_id", s.report.RunID),
		zap.Int("failures", len(s.report.Failures)),
		zap.Duration("elapsed", s.report.FinishedAt.Sub(s.report.StartedAt)),
	)
	if flagDryRun {
		return nil
	}
	return s.report.Write(ctx, s.store)
}

func (s *session) fetch(ctx context.Context) error {
	snapshotDate := flagSnapshotDate
	if snapshotDate == "" {
		snapshotDate = now().Format(time.DateOnly)
	}
	stage := &raw.Stage{
		Store:        s.store,
		HTTP:         fetcher.NewHTTPFetcher(cfg.Fetch.HTTPOptions()),
		Members:      membership.NewClient(cfg.Membership.APIKey, membership.WithBaseURL(cfg.Membership.BaseURL)),
		Concurrency:  cfg.Pipeline.Concurrency,
		SnapshotDate: snapshotDate,
		ScriptID:     cfg.Fetch.ScriptID,
		DryRun:       flagDryRun,
		Failures:     s.failures,
	}
	res, err := stage.Run(ctx, s.year)
	if err != nil {
		return eris.Wrap(err, "fetch")
	}
	s.report.AddStage(pipeline.StageSummary{Stage: "fetch", Processed: res.Processed, Failed: res.Failed, Skipped: res.Unchanged})
	return nil
}

func (s *session) clean(ctx context.Context) error {
	teams, err := teamCanonicalizer()
	if err != nil {
		return err
	}
	stage := &provider.Stage{
		Store:       s.store,
		Registry:    provider.NewRegistry(teams),
		Concurrency: cfg.Pipeline.Concurrency,
		DryRun:      flagDryRun,
		Failures:    s.failures,
	}
	res, err := stage.Run(ctx, s.year)
	if err != nil {
		return eris.Wrap(err, "clean")
	}
	s.report.AddStage(pipeline.StageSummary{Stage: "clean", Processed: res.Events + res.Series + res.Snapshots, Failed: res.Failed})
	return nil
}

func (s *session) unpack(ctx context.Context) error {
	stage := &unpack.Stage{Store: s.store, DryRun: flagDryRun, Failures: s.failures}
	res, err := stage.Run(ctx, s.year)
	if err != nil {
		return eris.Wrap(err, "unpack")
	}
	s.report.AddStage(pipeline.StageSummary{Stage: "unpack", Processed: res.Events + res.Series, Failed: res.Failed})
	return nil
}

func (s *session) athletes(ctx context.Context) error {
	teams, err := teamCanonicalizer()
	if err != nil {
		return err
	}
	stage := &athletes.Stage{
		Store: s.store,
		Aggregator: &athletes.Aggregator{
			Teams:       teams,
			Upgrade:     cfg.Inference,
			Concurrency: cfg.Pipeline.Concurrency,
			Now:         now,
			Failures:    s.failures,
		},
		OverridesKey: cfg.Pipeline.OverridesKey,
		DryRun:       flagDryRun,
		Failures:     s.failures,
	}
	res, err := stage.Run(ctx, s.year)
	if err != nil {
		return eris.Wrap(err, "athletes")
	}
	s.report.AddStage(pipeline.StageSummary{Stage: "athletes", Processed: res.Athletes, Failed: res.Failed, Skipped: res.Unresolved})
	return nil
}

func (s *session) publish(ctx context.Context) error {
	stage := &publish.Stage{
		Store:        s.store,
		OverridesKey: cfg.Pipeline.OverridesKey,
		Now:          now,
		DryRun:       flagDryRun,
		Failures:     s.failures,
	}
	res, err := stage.Run(ctx)
	if err != nil {
		return eris.Wrap(err, "publish")
	}
	s.report.AddStage(pipeline.StageSummary{Stage: "publish", Processed: res.Profiles, Failed: res.Failed})
	return nil
}

// teamCanonicalizer loads the configured team alias table, or the built-in one.
func teamCanonicalizer() (*normalize.TeamCanonicalizer, error) {
	if cfg.Pipeline.TeamsFile == "" {
		return normalize.DefaultTeamCanonicalizer()
	}
	data, err := os.ReadFile(cfg.Pipeline.TeamsFile)
	if err != nil {
		return nil, eris.Wrap(err, "read team table")
	}
	entries, err := normalize.ParseTeamTable(data)
	if err != nil {
		return nil, err
	}
	return normalize.NewTeamCanonicalizer(entries), nil
}

// runStages opens a session, runs the steps in order and writes the report.
// A failing step stops the run; the report is still written.
func runStages(ctx context.Context, mode string, steps ...func(*session, context.Context) error) error {
	s, err := startSession(ctx, mode)
	if err != nil {
		return err
	}
	var runErr error
	for _, step := range steps {
		if runErr = step(s, ctx); runErr != nil {
			break
		}
	}
	if err := s.finish(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
