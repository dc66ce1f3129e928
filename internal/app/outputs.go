package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/okian/riskset/internal/adapters/export"
	"github.com/okian/riskset/internal/domain/sampler"
	"github.com/okian/riskset/pkg/logger"
	"github.com/okian/riskset/pkg/metrics"
)

// Output file names inside the output directory.
const (
	PairsFile     = "matched_pairs.csv"
	CaseStatsFile = "case_statistics.csv"
	ParquetFile   = "matched_pairs.parquet"
	WorkbookFile  = "matching_report.xlsx"
)

const directoryPermission = 0o750

func (s *Service) writeOutputs(ctx context.Context, smp *sampler.Sampler, res *RunResult) error {
	if s.outputDir == "" && s.postgresDSN == "" {
		return nil
	}

	rows := export.PairRows(smp.Records(), smp.DateData(), res.Pairs)
	stats := export.CaseStats(smp.DateData(), res.Pairs)

	if s.outputDir != "" {
		if err := os.MkdirAll(s.outputDir, directoryPermission); err != nil {
			metrics.RecordErrorByComponent("export", "mkdir")
			return fmt.Errorf("%w: output directory: %w", export.ErrExport, err)
		}

		if err := s.writeFile(res, PairsFile, func(w io.Writer) error { return export.WritePairsCSV(w, rows) }); err != nil {
			return err
		}
		if err := s.writeFile(res, CaseStatsFile, func(w io.Writer) error { return export.WriteCaseStatsCSV(w, stats) }); err != nil {
			return err
		}

		if s.parquet {
			path := filepath.Join(s.outputDir, ParquetFile)
			if err := export.WriteParquet(path, rows); err != nil {
				metrics.RecordErrorByComponent("export", export.FormatParquet)
				return err
			}
			res.Files = append(res.Files, path)
		}

		if s.excel {
			path := filepath.Join(s.outputDir, WorkbookFile)
			crit := smp.Criteria()
			info := export.RunInfo{
				RunID:            res.RunID,
				BirthDateWindow:  crit.BirthDateWindow,
				ParentDateWindow: crit.ParentDateWindow,
				ControlsPerCase:  s.controlsPerCase,
			}
			if err := export.WriteWorkbook(path, info, res.Report, stats); err != nil {
				metrics.RecordErrorByComponent("export", export.FormatExcel)
				return err
			}
			res.Files = append(res.Files, path)
		}
	}

	if s.postgresDSN != "" {
		n, err := s.copyToPostgres(ctx, res.RunID, rows)
		if err != nil {
			metrics.RecordErrorByComponent("export", export.FormatPG)
			return err
		}
		res.PostgresRows = n
	}

	s.logger.Info(ctx, "outputs written",
		logger.String("runId", res.RunID),
		logger.Int("pairRows", len(rows)),
		logger.Any("files", res.Files),
	)
	return nil
}

func (s *Service) writeFile(res *RunResult, name string, write func(io.Writer) error) error {
	path := filepath.Join(s.outputDir, name)
	f, err := os.Create(path)
	if err != nil {
		metrics.RecordErrorByComponent("export", export.FormatCSV)
		return fmt.Errorf("%w: %w", export.ErrExport, err)
	}
	if err := write(f); err != nil {
		f.Close()
		metrics.RecordErrorByComponent("export", export.FormatCSV)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", export.ErrExport, err)
	}
	res.Files = append(res.Files, path)
	return nil
}

func (s *Service) copyToPostgres(ctx context.Context, runID string, rows []export.PairRow) (int64, error) {
	w, err := export.NewPostgresWriter(ctx, s.postgresDSN,
		export.WithTable(s.postgresTable),
		export.WithPostgresLogger(s.logger.Named("postgres")),
	)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	if err := w.EnsureTable(ctx); err != nil {
		return 0, err
	}
	return w.WritePairs(ctx, runID, rows)
}
