package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/okian/riskset/internal/domain/model"
	"github.com/okian/riskset/pkg/metrics"
)

// Output column names.
var (
	PairColumns = []string{
		"case_id", "case_pnr", "case_birth_date", "case_treatment_date",
		"control_id", "control_pnr", "control_birth_date",
		"birth_date_diff_days", "mother_age_diff_days", "father_age_diff_days",
	}
	CaseStatColumns = []string{
		"case_id", "n_controls", "avg_birth_diff", "max_birth_diff", "avg_mother_diff", "avg_father_diff",
	}
)

const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatExcel   = "excel"
	FormatPG      = "postgres"
)

func (d NullDiff) String() string {
	if !d.Valid {
		return model.MissingMarker
	}
	return strconv.FormatInt(d.Days, 10)
}

func formatAvg(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// WritePairsCSV writes one line per (case, control) with NA for absent parent differences.
func WritePairsCSV(w io.Writer, rows []PairRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PairColumns); err != nil {
		return fmt.Errorf("%w: pairs csv header: %w", ErrExport, err)
	}
	line := make([]string, len(PairColumns))
	for i := range rows {
		r := &rows[i]
		line[0] = strconv.Itoa(r.CaseID)
		line[1] = r.CasePNR
		line[2] = r.CaseBirthDate.String()
		line[3] = r.CaseTreatmentDate.String()
		line[4] = strconv.Itoa(r.ControlID)
		line[5] = r.ControlPNR
		line[6] = r.ControlBirthDate.String()
		line[7] = strconv.FormatInt(r.BirthDiff, 10)
		line[8] = r.MotherDiff.String()
		line[9] = r.FatherDiff.String()
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("%w: pairs csv: %w", ErrExport, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: pairs csv: %w", ErrExport, err)
	}
	metrics.RecordExportRows(FormatCSV, len(rows))
	return nil
}

// WriteCaseStatsCSV writes one line per matched case. Averages carry two decimals.
func WriteCaseStatsCSV(w io.Writer, stats []CaseStat) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CaseStatColumns); err != nil {
		return fmt.Errorf("%w: case statistics header: %w", ErrExport, err)
	}
	line := make([]string, len(CaseStatColumns))
	for i := range stats {
		s := &stats[i]
		line[0] = strconv.Itoa(s.CaseID)
		line[1] = strconv.Itoa(s.NControls)
		line[2] = formatAvg(s.AvgBirthDiff)
		line[3] = strconv.FormatInt(s.MaxBirthDiff, 10)
		line[4] = formatAvg(s.AvgMother)
		line[5] = formatAvg(s.AvgFather)
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("%w: case statistics: %w", ErrExport, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: case statistics: %w", ErrExport, err)
	}
	metrics.RecordExportRows(FormatCSV, len(stats))
	return nil
}
