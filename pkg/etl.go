package pkg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stage names a pipeline phase.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeLoaded          Outcome = "loaded"
	OutcomeNoData          Outcome = "no_data"
	OutcomeFetchFailed     Outcome = "fetch_failed"
	OutcomeTransformFailed Outcome = "transform_failed"
	OutcomeLoadFailed      Outcome = "load_failed"
)

var Outcomes = []Outcome{OutcomeLoaded, OutcomeNoData, OutcomeFetchFailed, OutcomeTransformFailed, OutcomeLoadFailed}

// Process exit statuses.
const (
	ExitOK              = 0
	ExitSetupFailed     = 1
	ExitFetchFailed     = 2
	ExitTransformFailed = 3
	ExitLoadFailed      = 4
)

type Extractor interface {
	Fetch(ctx context.Context) ([]RawCountryRecord, error)
}

type Projector interface {
	Transform(records []RawCountryRecord) ([]CountryStatRow, error)
}

type RowLoader interface {
	Load(ctx context.Context, rows []CountryStatRow) (int, error)
}

type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Fetched  int
	Loaded   int
	Outcome  Outcome
	Err      error
}

func (r *Report) ExitCode() int {
	switch r.Outcome {
	case OutcomeLoaded, OutcomeNoData:
		return ExitOK
	case OutcomeFetchFailed:
		return ExitFetchFailed
	case OutcomeTransformFailed:
		return ExitTransformFailed
	case OutcomeLoadFailed:
		return ExitLoadFailed
	default:
		return ExitSetupFailed
	}
}

type Pipeline struct {
	extractor Extractor
	projector Projector
	loader    RowLoader
	logger    zerolog.Logger
	metrics   *Metrics
	now       func() time.Time
	newRunID  func() string
}

type Option func(*Pipeline)

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics records phase durations and the outcome, pushing them after
// every run.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func NewPipeline(extractor Extractor, projector Projector, loader RowLoader, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		projector: projector,
		loader:    loader,
		logger:    zerolog.Nop(),
		now:       time.Now,
		newRunID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes fetch, transform and load once. The returned Report is never
// nil; the error is the typed error of the failing phase.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: p.newRunID(), Started: p.now()}
	logger := p.logger.With().Str("run_id", report.RunID).Logger()
	defer p.finish(ctx, &logger, report)

	logger.Info().Msg("Starting ETL process...")

	logger.Info().Str("phase", string(StageExtract)).Msg("Fetching country statistics")
	records, err := timed(p, StageExtract, func() ([]RawCountryRecord, error) {
		return p.extractor.Fetch(ctx)
	})
	if err != nil {
		logger.Err(err).Str("phase", string(StageExtract)).Msg("Fetch failed, nothing to load")
		return report.fail(OutcomeFetchFailed, err)
	}
	report.Fetched = len(records)
	logger.Info().Str("phase", string(StageExtract)).Int("records", len(records)).Msg("Fetched country statistics")

	if len(records) == 0 {
		logger.Info().Msg("No data to process. Exiting ETL.")
		report.Outcome = OutcomeNoData
		return report, nil
	}

	logger.Info().Str("phase", string(StageTransform)).Msg("Transforming records")
	rows, err := timed(p, StageTransform, func() ([]CountryStatRow, error) {
		return p.projector.Transform(records)
	})
	if err != nil {
		logger.Err(err).Str("phase", string(StageTransform)).Msg("Transform failed, aborting run")
		return report.fail(OutcomeTransformFailed, err)
	}
	logger.Info().Str("phase", string(StageTransform)).Int("rows", len(rows)).Msg("Transformed records")

	logger.Info().Str("phase", string(StageLoad)).Int("rows", len(rows)).Msg("Loading rows")
	loaded, err := timed(p, StageLoad, func() (int, error) {
		return p.loader.Load(ctx, rows)
	})
	if err != nil {
		logger.Err(err).Str("phase", string(StageLoad)).Msg("Load failed, nothing committed")
		return report.fail(OutcomeLoadFailed, err)
	}
	if loaded != len(rows) {
		err := &LoadError{Op: "count", Row: -1, Err: errors.New("loaded row count does not match input")}
		logger.Err(err).Int("rows", len(rows)).Int("loaded", loaded).Msg("Load reported a partial batch")
		return report.fail(OutcomeLoadFailed, err)
	}
	report.Loaded = loaded
	logger.Info().Str("phase", string(StageLoad)).Int("rows", loaded).Msg("Loaded rows")

	report.Outcome = OutcomeLoaded
	return report, nil
}

func (r *Report) fail(outcome Outcome, err error) (*Report, error) {
	r.Outcome = outcome
	r.Err = err
	r.Loaded = 0
	return r, err
}

func (p *Pipeline) finish(ctx context.Context, logger *zerolog.Logger, report *Report) {
	report.Finished = p.now()

	event := logger.Info()
	if report.Err != nil {
		event = logger.Error().Err(report.Err)
	}
	event.Str("outcome", string(report.Outcome)).
		Int("fetched", report.Fetched).
		Int("loaded", report.Loaded).
		Dur("elapsed", report.Finished.Sub(report.Started))
	if report.Err != nil {
		event.Msg("ETL process failed.")
	} else {
		event.Msg("ETL process completed successfully.")
	}

	if p.metrics == nil {
		return
	}
	p.metrics.Record(report)
	if err := p.metrics.Push(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to push run metrics")
	}
}

func timed[T any](p *Pipeline, stage Stage, fn func() (T, error)) (T, error) {
	start := p.now()
	v, err := fn()
	if p.metrics != nil {
		p.metrics.ObservePhase(stage, p.now().Sub(start))
	}
	return v, err
}

// BuildPipeline wires the production fetcher, transformer and loader for cfg.
func BuildPipeline(cfg *Config, logger zerolog.Logger) (*Pipeline, error) {
	connect, err := NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return NewPipeline(
		NewFetcher(cfg.EndpointURL, nil, logger),
		NewTransformer(time.Now),
		NewLoader(connect, cfg.TableName, logger),
		WithLogger(logger),
		WithMetrics(NewMetrics(cfg.MetricsJob, cfg.PushgatewayURL)),
	), nil
}
