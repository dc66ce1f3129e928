// Package service runs one risk-set sampling job end to end: sample,
// evaluate and write every configured output.
package service

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/okian/riskset/internal/adapters/export"
	"github.com/okian/riskset/internal/config"
	"github.com/okian/riskset/internal/domain/model"
	"github.com/okian/riskset/internal/domain/quality"
	"github.com/okian/riskset/internal/domain/sampler"
	"github.com/okian/riskset/pkg/logger"
	"github.com/okian/riskset/pkg/metrics"
)

// Service holds the settings of a sampling run. It has no state between runs.
type Service struct {
	// Matching
	birthDateWindow  int64
	parentDateWindow int64
	controlsPerCase  int

	// Execution
	batchSize int
	workers   int
	seed      uint64

	// Outputs
	outputDir     string
	parquet       bool
	excel         bool
	postgresDSN   string
	postgresTable string

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCriteria sets the birth and parent matching windows in days.
func WithCriteria(birthDateWindow, parentDateWindow int64) Option {
	return func(s *Service) {
		s.birthDateWindow = birthDateWindow
		s.parentDateWindow = parentDateWindow
	}
}

// WithControlsPerCase sets how many controls each case should get.
func WithControlsPerCase(n int) Option {
	return func(s *Service) {
		s.controlsPerCase = n
	}
}

// WithBatchSize sets the number of cases per sampling batch.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithWorkers bounds the number of batches sampled in parallel.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSeed fixes the random draws. Zero keeps the time based seed.
func WithSeed(seed uint64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithOutputDir sets where CSV, Parquet and Excel files go. Empty disables file outputs.
func WithOutputDir(dir string) Option {
	return func(s *Service) {
		s.outputDir = dir
	}
}

// WithParquet toggles the Parquet pairs file.
func WithParquet(enabled bool) Option {
	return func(s *Service) {
		s.parquet = enabled
	}
}

// WithExcelReport toggles the xlsx report.
func WithExcelReport(enabled bool) Option {
	return func(s *Service) {
		s.excel = enabled
	}
}

// WithPostgres enables the PostgreSQL export. An empty dsn disables it.
func WithPostgres(dsn, table string) Option {
	return func(s *Service) {
		s.postgresDSN = dsn
		if table != "" {
			s.postgresTable = table
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// OptionsFromConfig translates a loaded Config into Service options.
func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{
		WithCriteria(cfg.BirthDateWindow, cfg.ParentDateWindow),
		WithControlsPerCase(cfg.ControlsPerCase),
		WithBatchSize(cfg.BatchSize),
		WithWorkers(cfg.Workers),
		WithSeed(cfg.Seed),
		WithOutputDir(cfg.OutputDir),
		WithParquet(cfg.ParquetExport),
		WithExcelReport(cfg.ExcelReport),
		WithPostgres(cfg.PostgresDSN, cfg.PostgresTable),
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		birthDateWindow:  30,
		parentDateWindow: 365,
		controlsPerCase:  4,
		batchSize:        sampler.DefaultBatchSize,
		workers:          runtime.NumCPU(),
		postgresTable:    export.DefaultTable,
		logger:           logger.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RunResult is what one Run produced.
type RunResult struct {
	RunID        string
	Seed         uint64
	Pairs        []model.CaseControlPair
	Report       quality.Report
	Files        []string
	PostgresRows int64
	Duration     time.Duration
}

// Run samples controls for records, evaluates the match and writes the outputs.
func (s *Service) Run(ctx context.Context, records []model.Record) (*RunResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := s.logger.Named("run")

	criteria, err := sampler.NewMatchingCriteria(s.birthDateWindow, s.parentDateWindow)
	if err != nil {
		metrics.RecordErrorByComponent("service", "criteria")
		return nil, err
	}

	opts := []sampler.Option{
		sampler.WithBatchSize(s.batchSize),
		sampler.WithWorkers(s.workers),
		sampler.WithLogger(s.logger.Named("sampler")),
	}
	if s.seed != 0 {
		opts = append(opts, sampler.WithSeed(s.seed))
	}

	smp, err := sampler.New(records, criteria, opts...)
	if err != nil {
		metrics.RecordErrorByComponent("service", "sampler")
		return nil, err
	}

	log.Info(ctx, "sampling controls",
		logger.String("runId", runID),
		logger.Int("controlsPerCase", s.controlsPerCase),
		logger.Int64("birthDateWindow", criteria.BirthDateWindow),
		logger.Int64("parentDateWindow", criteria.ParentDateWindow),
		logger.Any("seed", smp.Seed()),
	)

	pairs, err := smp.SampleControls(ctx, s.controlsPerCase)
	if err != nil {
		metrics.RecordErrorByComponent("sampler", "sample")
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	report := smp.EvaluateMatchingQuality(pairs)
	metrics.UpdateMatchingRate(report.MatchingRate)
	for _, d := range report.Dimensions() {
		metrics.UpdateDimension(d.Name, d.Balance, float64(d.P50))
	}

	res := &RunResult{
		RunID:  runID,
		Seed:   smp.Seed(),
		Pairs:  pairs,
		Report: report,
	}
	if err := s.writeOutputs(ctx, smp, res); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	res.Duration = time.Since(start)
	log.Info(ctx, "run finished",
		logger.String("runId", runID),
		logger.Int("matchedCases", report.MatchedCases),
		logger.Int("totalCases", report.TotalCases),
		logger.Float64("matchingRate", report.MatchingRate),
		logger.Int("files", len(res.Files)),
		logger.Duration("took", res.Duration),
	)
	return res, nil
}
