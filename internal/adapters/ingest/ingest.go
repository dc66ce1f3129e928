// Package ingest reads and writes the register CSV format.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/okian/riskset/internal/domain/dates"
	"github.com/okian/riskset/internal/domain/dedupe"
	"github.com/okian/riskset/internal/domain/model"
	"github.com/okian/riskset/pkg/logger"
)

// Register column names.
const (
	ColPNR           = "pnr"
	ColBirthDate     = "bday"
	ColTreatmentDate = "treatment_date"
	ColMotherBirth   = "mother_bday"
	ColFatherBirth   = "father_bday"
)

// Header is the column order Write emits.
var Header = []string{ColPNR, ColBirthDate, ColTreatmentDate, ColMotherBirth, ColFatherBirth}

// ctxCheckEvery is how many rows are read between cancellation checks.
const ctxCheckEvery = 4096

var validate = validator.New(validator.WithRequiredStructEnabled())

// row holds the raw fields of one register line.
type row struct {
	PNR       string `validate:"required"`
	BirthDate string `validate:"required"`
	Treatment string
	Mother    string
	Father    string
}

type loader struct {
	comma    rune
	expected int
	logger   logger.Logger
}

// columns maps register columns to field positions; -1 means absent.
type columns struct {
	pnr, birth, treatment, mother, father int
}

// Load reads register records from r. The header row decides the column
// order. Optional columns may be missing from the header entirely.
func Load(ctx context.Context, r io.Reader, opts ...Option) ([]model.Record, error) {
	ld := &loader{comma: ',', logger: logger.Discard()}
	for _, opt := range opts {
		opt(ld)
	}

	cr := csv.NewReader(r)
	cr.Comma = ld.comma
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty input has no header", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrReadInput, err)
	}
	cols, err := columnsOf(header)
	if err != nil {
		return nil, err
	}
	// Rows may differ in width when trailing optional columns are left off.
	cr.FieldsPerRecord = -1

	seen := dedupe.NewInMemoryDeduper(dedupe.WithExpectedSize(ld.expected))
	records := make([]model.Record, 0, ld.expected)

	for line := 2; ; line++ {
		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrReadInput, line, err)
		}

		rec, err := cols.parse(fields, line)
		if err != nil {
			return nil, err
		}
		if first, dup := seen.SeenAndRecord(ctx, rec.PNR, line); dup {
			return nil, fmt.Errorf("%w: %q on line %d, first seen on line %d", ErrDuplicatePNR, rec.PNR, line, first)
		}
		records = append(records, rec)
	}

	cases := 0
	for i := range records {
		if records[i].IsCase() {
			cases++
		}
	}
	ld.logger.Info(ctx, "register loaded",
		logger.Int("records", len(records)),
		logger.Int("cases", cases),
		logger.Int("controls", len(records)-cases),
	)
	return records, nil
}

// LoadFile opens path and loads it with Load.
func LoadFile(ctx context.Context, path string, opts ...Option) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	defer f.Close()

	return Load(ctx, f, opts...)
}

func columnsOf(header []string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		pos[h] = i
	}
	lookup := func(name string) int {
		if i, ok := pos[name]; ok {
			return i
		}
		return -1
	}

	cols := columns{
		pnr:       lookup(ColPNR),
		birth:     lookup(ColBirthDate),
		treatment: lookup(ColTreatmentDate),
		mother:    lookup(ColMotherBirth),
		father:    lookup(ColFatherBirth),
	}
	if cols.pnr < 0 {
		return columns{}, fmt.Errorf("%w: %s", ErrMissingColumn, ColPNR)
	}
	if cols.birth < 0 {
		return columns{}, fmt.Errorf("%w: %s", ErrMissingColumn, ColBirthDate)
	}
	return cols, nil
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func (c columns) parse(fields []string, line int) (model.Record, error) {
	raw := row{
		PNR:       field(fields, c.pnr),
		BirthDate: field(fields, c.birth),
		Treatment: field(fields, c.treatment),
		Mother:    field(fields, c.mother),
		Father:    field(fields, c.father),
	}
	if raw.BirthDate == model.MissingMarker {
		raw.BirthDate = ""
	}
	if err := validate.Struct(raw); err != nil {
		return model.Record{}, fmt.Errorf("%w: line %d: %w", ErrInvalidRow, line, err)
	}

	var (
		rec model.Record
		err error
	)
	rec.PNR = raw.PNR
	if rec.BirthDate, err = dates.ParseRequired(raw.BirthDate); err != nil {
		return model.Record{}, fmt.Errorf("line %d, column %s: %w", line, ColBirthDate, err)
	}
	if rec.TreatmentDate, err = dates.Parse(raw.Treatment); err != nil {
		return model.Record{}, fmt.Errorf("line %d, column %s: %w", line, ColTreatmentDate, err)
	}
	if rec.MotherBirthDate, err = dates.Parse(raw.Mother); err != nil {
		return model.Record{}, fmt.Errorf("line %d, column %s: %w", line, ColMotherBirth, err)
	}
	if rec.FatherBirthDate, err = dates.Parse(raw.Father); err != nil {
		return model.Record{}, fmt.Errorf("line %d, column %s: %w", line, ColFatherBirth, err)
	}
	return rec, nil
}

// Write emits records in the register format with NA for absent dates.
func Write(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	line := make([]string, len(Header))
	for i := range records {
		r := &records[i]
		line[0] = r.PNR
		line[1] = r.BirthDate.String()
		line[2] = r.TreatmentDate.String()
		line[3] = r.MotherBirthDate.String()
		line[4] = r.FatherBirthDate.String()
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}
