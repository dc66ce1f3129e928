package export

import (
	"fmt"
	"math"

	"github.com/okian/riskset/internal/domain/quality"
	"github.com/okian/riskset/pkg/metrics"
	"github.com/xuri/excelize/v2"
)

// Workbook sheet names.
const (
	SheetSummary   = "Summary"
	SheetCaseStats = "Case statistics"
)

// RunInfo labels a workbook with the run that produced it.
type RunInfo struct {
	RunID            string
	BirthDateWindow  int64
	ParentDateWindow int64
	ControlsPerCase  int
}

func balanceCell(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return v
}

// WriteWorkbook saves the quality report and per-case statistics as an xlsx file.
func WriteWorkbook(path string, info RunInfo, report quality.Report, stats []CaseStat) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return fmt.Errorf("%w: workbook: %w", ErrExport, err)
	}

	summary := [][]any{
		{"Run", info.RunID},
		{"Birth date window (days)", info.BirthDateWindow},
		{"Parent date window (days)", info.ParentDateWindow},
		{"Controls per case", info.ControlsPerCase},
		{},
		{"Total cases", report.TotalCases},
		{"Matched cases", report.MatchedCases},
		{"Total controls", report.TotalControls},
		{"Avg controls per case", report.AvgControlsPerCase},
		{"Matching rate", report.MatchingRate},
		{"Control utilization", report.ControlUtilization},
		{},
		{"Dimension", "N", "P25", "P50", "P75", "Balance"},
	}
	for _, d := range report.Dimensions() {
		summary = append(summary, []any{d.Name, d.N, d.P25, d.P50, d.P75, balanceCell(d.Balance)})
	}
	summary = append(summary, []any{"parents", "", "", "", "", balanceCell(report.ParentBalance)})

	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetCaseStats); err != nil {
		return fmt.Errorf("%w: workbook: %w", ErrExport, err)
	}
	rows := make([][]any, 0, len(stats)+1)
	header := make([]any, len(CaseStatColumns))
	for i, c := range CaseStatColumns {
		header[i] = c
	}
	rows = append(rows, header)
	for _, s := range stats {
		rows = append(rows, []any{s.CaseID, s.NControls, s.AvgBirthDiff, s.MaxBirthDiff, s.AvgMother, s.AvgFather})
	}
	if err := writeRows(f, SheetCaseStats, rows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: save workbook: %w", ErrExport, err)
	}
	metrics.RecordExportRows(FormatExcel, len(stats))
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("%w: workbook: %w", ErrExport, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%w: workbook %s row %d: %w", ErrExport, sheet, i+1, err)
		}
	}
	return nil
}
