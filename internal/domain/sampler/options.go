package sampler

import (
	"runtime"

	"github.com/okian/riskset/pkg/logger"
)

// Default sampler configuration constants.
const (
	DefaultBatchSize = 1024
)

// Option applies a configuration option to the Sampler.
type Option func(*Sampler)

// WithBatchSize sets how many cases one batch processes.
func WithBatchSize(size int) Option {
	return func(s *Sampler) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithWorkers bounds how many batches run at once.
func WithWorkers(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSeed makes sampling reproducible. Without it the seed is time based.
func WithSeed(seed uint64) Option {
	return func(s *Sampler) {
		s.seed = seed
		s.seeded = true
	}
}

// WithLogger sets a custom logger for the sampler.
func WithLogger(l logger.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

func defaultWorkers() int { return runtime.NumCPU() }
