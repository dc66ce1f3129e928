// Package sampler performs incidence density (risk-set) sampling of controls for cases.
package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/riskset/internal/domain/dates"
	"github.com/okian/riskset/internal/domain/model"
	"github.com/okian/riskset/internal/domain/quality"
	"github.com/okian/riskset/pkg/logger"
	"github.com/okian/riskset/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Sampler draws matched controls for every case of a fixed population.
// It is safe to call SampleControls concurrently: all shared state is read-only.
type Sampler struct {
	records  []model.Record
	index    *dates.Index
	criteria MatchingCriteria

	batchSize int
	workers   int
	seed      uint64
	seeded    bool

	logger logger.Logger
}

// New validates the criteria and indexes records. records must not be
// modified while the Sampler is in use.
func New(records []model.Record, criteria MatchingCriteria, opts ...Option) (*Sampler, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	s := &Sampler{
		records:   records,
		criteria:  criteria,
		batchSize: DefaultBatchSize,
		workers:   defaultWorkers(),
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.seeded {
		s.seed = uint64(time.Now().UnixNano())
	}

	start := time.Now()
	s.index = dates.Build(records)
	elapsed := time.Since(start)

	metrics.RecordIndexDuration(elapsed.Seconds())
	metrics.UpdatePopulation(s.index.Len(), len(s.index.Cases()), len(s.index.Controls()))
	s.logger.Info(context.Background(), "birth date index built",
		logger.Int("records", s.index.Len()),
		logger.Int("cases", len(s.index.Cases())),
		logger.Int("controls", len(s.index.Controls())),
		logger.Duration("took", elapsed),
	)

	return s, nil
}

// SampleControls selects up to nControls distinct controls per case.
// Cases without any eligible control are left out of the result. The
// order of pairs is not meaningful. ctx only scopes logging; a run is
// never interrupted.
func (s *Sampler) SampleControls(ctx context.Context, nControls int) ([]model.CaseControlPair, error) {
	if nControls < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidControlCount, nControls)
	}
	start := time.Now()

	cases := s.index.Cases()
	nBatches := (len(cases) + s.batchSize - 1) / s.batchSize
	results := make([][]model.CaseControlPair, nBatches)

	var g errgroup.Group
	g.SetLimit(s.workers)
	for b := range nBatches {
		lo := b * s.batchSize
		hi := min(lo+s.batchSize, len(cases))
		g.Go(func() error {
			results[b] = s.newBatch(b).run(ctx, cases[lo:hi], nControls)
			return nil
		})
	}
	// Batches never fail; Wait is only the join point.
	_ = g.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	pairs := make([]model.CaseControlPair, 0, total)
	for _, r := range results {
		pairs = append(pairs, r...)
	}

	elapsed := time.Since(start)
	metrics.RecordRunDuration(elapsed.Seconds())

	if len(pairs) == 0 {
		s.logger.Warn(ctx, "no case found an eligible control",
			logger.Int("cases", len(cases)),
			logger.Int64("birthDateWindow", s.criteria.BirthDateWindow),
			logger.Int64("parentDateWindow", s.criteria.ParentDateWindow),
		)
		return nil, ErrNoEligibleControls
	}

	s.logger.Info(ctx, "sampling finished",
		logger.Int("cases", len(cases)),
		logger.Int("matchedCases", len(pairs)),
		logger.Int("batches", nBatches),
		logger.Duration("took", elapsed),
	)
	return pairs, nil
}

// EvaluateMatchingQuality summarizes pairs produced by this sampler.
func (s *Sampler) EvaluateMatchingQuality(pairs []model.CaseControlPair) quality.Report {
	return quality.Evaluate(s.index.All(), pairs, len(s.index.Cases()))
}

// Records returns the population the sampler was built from.
func (s *Sampler) Records() []model.Record { return s.records }

// DateData returns the epoch days of every record.
func (s *Sampler) DateData() []dates.DateData { return s.index.All() }

// Cases returns the indices of all cases.
func (s *Sampler) Cases() []int { return s.index.Cases() }

// Controls returns the sorted indices of all controls.
func (s *Sampler) Controls() []int { return s.index.Controls() }

// Criteria returns the matching criteria in use.
func (s *Sampler) Criteria() MatchingCriteria { return s.criteria }

// Seed returns the seed the batch generators are derived from.
func (s *Sampler) Seed() uint64 { return s.seed }
