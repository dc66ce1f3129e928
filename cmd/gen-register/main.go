package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/riskset/internal/adapters/ingest"
	"github.com/okian/riskset/internal/registergen"
	"github.com/okian/riskset/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	def := registergen.DefaultConfig()
	fs := flag.NewFlagSet("gen-register", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		subjects      = fs.Int("n", def.Subjects, "number of subjects")
		fromYear      = fs.Int("from", def.FromYear, "first birth year")
		toYear        = fs.Int("to", def.ToYear, "last birth year")
		caseFraction  = fs.Float64("cases", def.CaseFraction, "fraction of subjects with a treatment date")
		motherMissing = fs.Float64("mother-missing", def.MotherMissing, "fraction without a mother birth date")
		fatherMissing = fs.Float64("father-missing", def.FatherMissing, "fraction without a father birth date")
		treatmentAge  = fs.Int("max-treatment-age", def.MaxTreatmentAge, "latest treatment, in years after birth")
		seed          = fs.Uint64("seed", def.Seed, "random seed")
		workers       = fs.Int("workers", 0, "generator goroutines (0 = number of CPUs)")
		outputFile    = fs.String("output", "", "output CSV (default: stdout)")
		logFormat     = fs.String("log-format", "text", "log format: text or json")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := logger.Init(logger.WithWriter(stderr), logger.WithFormat(*logFormat)); err != nil {
		fmt.Fprintln(stderr, "failed to initialize logging:", err)
		return 1
	}
	log := logger.Get()

	cfg := registergen.Config{
		Subjects:        *subjects,
		FromYear:        *fromYear,
		ToYear:          *toYear,
		CaseFraction:    *caseFraction,
		MotherMissing:   *motherMissing,
		FatherMissing:   *fatherMissing,
		MaxTreatmentAge: *treatmentAge,
		Seed:            *seed,
		Workers:         *workers,
	}
	records, err := registergen.Generate(ctx, cfg, log.Named("registergen"))
	if err != nil {
		log.Error(ctx, "failed to generate register", logger.Error(err))
		return 1
	}

	out := stdout
	if *outputFile != "" {
		f, err := os.Create(*outputFile)
		if err != nil {
			log.Error(ctx, "failed to create output file", logger.String("path", *outputFile), logger.Error(err))
			return 1
		}
		defer f.Close()
		out = f
	}

	bw := bufio.NewWriter(out)
	if err := ingest.Write(bw, records); err != nil {
		log.Error(ctx, "failed to write register", logger.Error(err))
		return 1
	}
	if err := bw.Flush(); err != nil {
		log.Error(ctx, "failed to write register", logger.Error(err))
		return 1
	}
	log.Info(ctx, "register written", logger.Int("subjects", len(records)), logger.String("output", *outputFile))
	return 0
}
