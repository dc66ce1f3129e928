package export

import (
	"fmt"
	"os"

	"github.com/okian/riskset/pkg/metrics"
	"github.com/parquet-go/parquet-go"
)

// ParquetPair is the Parquet layout of a PairRow. Absent values are null.
type ParquetPair struct {
	CaseID            int64   `parquet:"case_id"`
	CasePNR           string  `parquet:"case_pnr"`
	CaseBirthDate     string  `parquet:"case_birth_date"`
	CaseTreatmentDate *string `parquet:"case_treatment_date"`
	ControlID         int64   `parquet:"control_id"`
	ControlPNR        string  `parquet:"control_pnr"`
	ControlBirthDate  string  `parquet:"control_birth_date"`
	BirthDiff         int64   `parquet:"birth_date_diff_days"`
	MotherDiff        *int64  `parquet:"mother_age_diff_days"`
	FatherDiff        *int64  `parquet:"father_age_diff_days"`
}

const parquetFlushInterval = 100_000

// ParquetWriter writes pair rows to a Snappy compressed Parquet file.
type ParquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[ParquetPair]
	count  int
}

// NewParquetWriter creates filename and prepares a writer for it.
func NewParquetWriter(filename string) (*ParquetWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: create parquet file: %w", ErrExport, err)
	}

	writer := parquet.NewGenericWriter[ParquetPair](file,
		parquet.Compression(&parquet.Snappy),
	)

	return &ParquetWriter{
		file:   file,
		writer: writer,
	}, nil
}

func toParquet(r *PairRow) ParquetPair {
	p := ParquetPair{
		CaseID:           int64(r.CaseID),
		CasePNR:          r.CasePNR,
		CaseBirthDate:    r.CaseBirthDate.String(),
		ControlID:        int64(r.ControlID),
		ControlPNR:       r.ControlPNR,
		ControlBirthDate: r.ControlBirthDate.String(),
		BirthDiff:        r.BirthDiff,
	}
	if r.CaseTreatmentDate.Valid {
		s := r.CaseTreatmentDate.Date.String()
		p.CaseTreatmentDate = &s
	}
	if r.MotherDiff.Valid {
		d := r.MotherDiff.Days
		p.MotherDiff = &d
	}
	if r.FatherDiff.Valid {
		d := r.FatherDiff.Days
		p.FatherDiff = &d
	}
	return p
}

// Write appends rows, flushing a row group every parquetFlushInterval rows.
func (pw *ParquetWriter) Write(rows []PairRow) error {
	batch := make([]ParquetPair, 0, min(len(rows), parquetFlushInterval))
	for i := range rows {
		batch = append(batch, toParquet(&rows[i]))
		if len(batch) == cap(batch) {
			if err := pw.flush(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		return pw.flush(batch)
	}
	return nil
}

func (pw *ParquetWriter) flush(batch []ParquetPair) error {
	if _, err := pw.writer.Write(batch); err != nil {
		return fmt.Errorf("%w: write parquet rows: %w", ErrExport, err)
	}
	pw.count += len(batch)
	if err := pw.writer.Flush(); err != nil {
		return fmt.Errorf("%w: flush parquet row group: %w", ErrExport, err)
	}
	return nil
}

// Close flushes and closes the Parquet writer.
func (pw *ParquetWriter) Close() error {
	if err := pw.writer.Close(); err != nil {
		pw.file.Close()
		return fmt.Errorf("%w: close parquet writer: %w", ErrExport, err)
	}
	metrics.RecordExportRows(FormatParquet, pw.count)
	return pw.file.Close()
}

// Count returns the number of rows written.
func (pw *ParquetWriter) Count() int {
	return pw.count
}

// WriteParquet writes rows to filename in one go.
func WriteParquet(filename string, rows []PairRow) error {
	pw, err := NewParquetWriter(filename)
	if err != nil {
		return err
	}
	if err := pw.Write(rows); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}
