package registergen

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"cloud.google.com/go/civil"
	"github.com/okian/riskset/internal/domain/dates"
	"github.com/okian/riskset/internal/domain/model"
	"github.com/okian/riskset/pkg/logger"
	"github.com/valyala/fastrand"
	"golang.org/x/sync/errgroup"
)

const (
	// chunkSize is fixed so the output does not depend on the worker count.
	chunkSize    = 4096
	daysPerYear  = 365
	maxPNRSerial = 9999
)

// Generate returns cfg.Subjects records. The same Config always yields the same register.
func Generate(ctx context.Context, cfg Config, log logger.Logger) ([]model.Record, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	start := time.Now()
	first := dates.DayOf(civil.Date{Year: cfg.FromYear, Month: time.January, Day: 1})
	last := dates.DayOf(civil.Date{Year: cfg.ToYear, Month: time.December, Day: 31})
	span := uint32(last - first + 1)

	records := make([]model.Record, cfg.Subjects)
	nChunks := (cfg.Subjects + chunkSize - 1) / chunkSize

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for c := range nChunks {
		lo := c * chunkSize
		hi := min(lo+chunkSize, cfg.Subjects)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var rng fastrand.RNG
			rng.Seed(chunkSeed(cfg.Seed, c))
			for i := lo; i < hi; i++ {
				records[i] = subject(&rng, &cfg, first, span)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("generating register: %w", err)
	}

	if err := assignPNRs(records); err != nil {
		return nil, err
	}

	cases := 0
	for i := range records {
		if records[i].IsCase() {
			cases++
		}
	}
	log.Info(ctx, "register generated",
		logger.Int("subjects", len(records)),
		logger.Int("cases", cases),
		logger.Duration("took", time.Since(start)),
	)
	return records, nil
}

func uniform(rng *fastrand.RNG) float64 {
	return float64(rng.Uint32()) / (1 << 32)
}

func subject(rng *fastrand.RNG, cfg *Config, first int64, span uint32) model.Record {
	birth := first + int64(rng.Uint32n(span))
	r := model.Record{BirthDate: dates.DateOf(birth)}

	if uniform(rng) < cfg.CaseFraction {
		after := int64(rng.Uint32n(uint32(cfg.MaxTreatmentAge*daysPerYear))) + 1
		r.TreatmentDate = model.Some(dates.DateOf(birth + after))
	}
	if uniform(rng) >= cfg.MotherMissing {
		r.MotherBirthDate = model.Some(dates.DateOf(birth - parentAge(rng)))
	}
	if uniform(rng) >= cfg.FatherMissing {
		r.FatherBirthDate = model.Some(dates.DateOf(birth - parentAge(rng)))
	}
	return r
}

// parentAge is the parent's age in days at the child's birth.
func parentAge(rng *fastrand.RNG) int64 {
	lo := int64(minParentAge * daysPerYear)
	hi := int64(maxParentAge * daysPerYear)
	return lo + int64(rng.Uint32n(uint32(hi-lo+1)))
}

// assignPNRs numbers subjects DDMMYY-NNNN, counting per date prefix in record order.
func assignPNRs(records []model.Record) error {
	serial := make(map[string]int)
	for i := range records {
		d := records[i].BirthDate
		prefix := fmt.Sprintf("%02d%02d%02d", d.Day, int(d.Month), d.Year%100)
		serial[prefix]++
		n := serial[prefix]
		if n > maxPNRSerial {
			return fmt.Errorf("%w: %s", ErrPNRExhausted, prefix)
		}
		records[i].PNR = fmt.Sprintf("%s-%04d", prefix, n)
	}
	return nil
}

func chunkSeed(seed uint64, chunk int) uint32 {
	z := seed ^ (uint64(chunk+1) * 0x9e3779b97f4a7c15)
	z = (z ^ (z >> 33)) * 0xff51afd7ed558ccd
	z ^= z >> 33
	if s := uint32(z); s != 0 {
		return s
	}
	return 1
}
