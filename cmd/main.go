package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/riskset/internal/adapters/ingest"
	app "github.com/okian/riskset/internal/app"
	"github.com/okian/riskset/internal/config"
	"github.com/okian/riskset/pkg/logger"
	"github.com/okian/riskset/pkg/metrics"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run loads the configuration, samples the register and prints the quality summary.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("riskset", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "register CSV to sample from (overrides RISKSET_INPUT_PATH)")
	output := fs.String("output", "", "output directory (overrides RISKSET_OUTPUT_DIR)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger is not set up until the format is known.
		fmt.Fprintln(stderr, "failed to load config:", err)
		return exitFailed
	}
	if *input != "" {
		cfg.InputPath = *input
	}
	if *output != "" {
		cfg.OutputDir = *output
	}
	if cfg.InputPath == "" {
		fmt.Fprintln(stderr, "no register given: use -input or RISKSET_INPUT_PATH")
		return exitUsage
	}

	if err := logger.Init(logger.WithWriter(stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		fmt.Fprintln(stderr, "failed to initialize logging:", err)
		return exitFailed
	}
	defer func() { _ = logger.Sync() }()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	log := logger.Get()

	records, err := ingest.LoadFile(ctx, cfg.InputPath, ingest.WithLogger(log.Named("ingest")))
	if err != nil {
		metrics.RecordErrorByComponent("ingest", "load")
		log.Error(ctx, "failed to load register", logger.String("path", cfg.InputPath), logger.Error(err))
		return exitFailed
	}

	svc := app.New(append(app.OptionsFromConfig(cfg), app.WithLogger(log))...)
	res, err := svc.Run(ctx, records)
	if err != nil {
		log.Error(ctx, "sampling run failed", logger.Error(err))
		writeMetrics(ctx, log, cfg.MetricsTextfile)
		return exitFailed
	}

	fmt.Fprint(stdout, res.Report.Summary())
	for _, f := range res.Files {
		fmt.Fprintln(stdout, "wrote", f)
	}
	if res.PostgresRows > 0 {
		fmt.Fprintf(stdout, "copied %d rows to %s\n", res.PostgresRows, cfg.PostgresTable)
	}

	writeMetrics(ctx, log, cfg.MetricsTextfile)
	return exitOK
}

func writeMetrics(ctx context.Context, log logger.Logger, path string) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		log.Warn(ctx, "failed to write metrics textfile", logger.String("path", path), logger.Error(err))
	}
}
