package sampler

import (
	"context"
	"strconv"
	"time"

	"github.com/okian/riskset/internal/domain/model"
	"github.com/okian/riskset/pkg/logger"
	"github.com/okian/riskset/pkg/metrics"
	"github.com/valyala/fastrand"
)

// initialScratch is the starting capacity of the eligible-candidate buffer.
const initialScratch = 64

// batch samples a contiguous run of cases. It owns its generator and scratch
// buffer; the sampler's index is only read.
type batch struct {
	s        *Sampler
	id       int
	rng      fastrand.RNG
	eligible []int
	logger   logger.Logger
}

func (s *Sampler) newBatch(id int) *batch {
	b := &batch{
		s:        s,
		id:       id,
		eligible: make([]int, 0, initialScratch),
		logger:   s.logger.Named("batch-" + strconv.Itoa(id)),
	}
	b.rng.Seed(batchSeed(s.seed, id))
	return b
}

func (b *batch) run(ctx context.Context, cases []int, nControls int) []model.CaseControlPair {
	start := time.Now()
	out := make([]model.CaseControlPair, 0, len(cases))

	for _, c := range cases {
		b.collect(c)
		found := len(b.eligible)
		group := b.choose(nControls)
		metrics.RecordCaseSampled(found, len(group))
		if len(group) == 0 {
			continue
		}
		out = append(out, model.CaseControlPair{Case: c, Controls: group})
	}

	elapsed := time.Since(start)
	metrics.RecordBatchCompleted(elapsed.Seconds())
	b.logger.Debug(ctx, "batch done",
		logger.Int("cases", len(cases)),
		logger.Int("matched", len(out)),
		logger.Duration("took", elapsed),
	)
	return out
}

// collect fills b.eligible with the risk set of case c, in discovery order.
func (b *batch) collect(c int) {
	idx := b.s.index
	crit := b.s.criteria
	cd := idx.Days(c)

	b.eligible = b.eligible[:0]
	for day := cd.Birth - crit.BirthDateWindow; day <= cd.Birth+crit.BirthDateWindow; day++ {
		for _, cand := range idx.Bucket(day) {
			// Cases share buckets with controls.
			if !idx.IsControl(cand) || !crit.Eligible(cd, idx.Days(cand)) {
				continue
			}
			b.eligible = append(b.eligible, cand)
		}
	}
}

// choose takes everything when the risk set is small enough, otherwise n
// uniform draws without replacement. It consumes b.eligible.
func (b *batch) choose(n int) model.ControlGroup {
	pool := b.eligible
	if len(pool) == 0 {
		return nil
	}
	if len(pool) <= n {
		group := make(model.ControlGroup, len(pool))
		copy(group, pool)
		return group
	}

	group := make(model.ControlGroup, 0, n)
	for len(group) < n {
		j := int(b.rng.Uint32n(uint32(len(pool))))
		group = append(group, pool[j])
		last := len(pool) - 1
		pool[j] = pool[last]
		pool = pool[:last]
	}
	return group
}

// batchSeed derives a per-batch 32-bit seed with a splitmix64 step. The
// result is never zero: fastrand reseeds a zero state from the runtime.
func batchSeed(seed uint64, id int) uint32 {
	z := seed + uint64(id+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	s := uint32(z) ^ uint32(z>>32)
	if s == 0 {
		s = 1
	}
	return s
}
