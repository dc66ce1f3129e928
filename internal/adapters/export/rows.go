// Package export writes sampling results as CSV, Parquet, Excel and PostgreSQL rows.
package export

import (
	"cloud.google.com/go/civil"
	"github.com/okian/riskset/internal/domain/dates"
	"github.com/okian/riskset/internal/domain/model"
)

// NullDiff is an absolute day difference that is absent when either parent date is.
type NullDiff struct {
	Days  int64
	Valid bool
}

// PairRow is one (case, control) line of the matched pairs output.
type PairRow struct {
	CaseID            int
	CasePNR           string
	CaseBirthDate     civil.Date
	CaseTreatmentDate model.NullDate
	ControlID         int
	ControlPNR        string
	ControlBirthDate  civil.Date
	BirthDiff         int64
	MotherDiff        NullDiff
	FatherDiff        NullDiff
}

// CaseStat summarizes the control group of one case. Absent parent
// differences count as 0 in the averages.
type CaseStat struct {
	CaseID       int
	NControls    int
	AvgBirthDiff float64
	MaxBirthDiff int64
	AvgMother    float64
	AvgFather    float64
}

func nullDiff(a, b dates.NullDay) NullDiff {
	d, ok := dates.AbsDiff(a, b)
	return NullDiff{Days: d, Valid: ok}
}

// PairRows flattens pairs into one row per control. days must be the
// epoch-day view of records.
func PairRows(records []model.Record, days []dates.DateData, pairs []model.CaseControlPair) []PairRow {
	n := 0
	for _, p := range pairs {
		n += len(p.Controls)
	}
	rows := make([]PairRow, 0, n)
	for _, p := range pairs {
		cr, cd := &records[p.Case], days[p.Case]
		for _, c := range p.Controls {
			kr, kd := &records[c], days[c]
			rows = append(rows, PairRow{
				CaseID:            p.Case,
				CasePNR:           cr.PNR,
				CaseBirthDate:     cr.BirthDate,
				CaseTreatmentDate: cr.TreatmentDate,
				ControlID:         c,
				ControlPNR:        kr.PNR,
				ControlBirthDate:  kr.BirthDate,
				BirthDiff:         dates.Abs(cd.Birth - kd.Birth),
				MotherDiff:        nullDiff(cd.Mother, kd.Mother),
				FatherDiff:        nullDiff(cd.Father, kd.Father),
			})
		}
	}
	return rows
}

// CaseStats computes one CaseStat per pair.
func CaseStats(days []dates.DateData, pairs []model.CaseControlPair) []CaseStat {
	stats := make([]CaseStat, 0, len(pairs))
	for _, p := range pairs {
		if len(p.Controls) == 0 {
			continue
		}
		cd := days[p.Case]
		var birthSum, motherSum, fatherSum, birthMax int64
		for _, c := range p.Controls {
			kd := days[c]
			b := dates.Abs(cd.Birth - kd.Birth)
			birthSum += b
			birthMax = max(birthMax, b)
			if d, ok := dates.AbsDiff(cd.Mother, kd.Mother); ok {
				motherSum += d
			}
			if d, ok := dates.AbsDiff(cd.Father, kd.Father); ok {
				fatherSum += d
			}
		}
		n := float64(len(p.Controls))
		stats = append(stats, CaseStat{
			CaseID:       p.Case,
			NControls:    len(p.Controls),
			AvgBirthDiff: float64(birthSum) / n,
			MaxBirthDiff: birthMax,
			AvgMother:    float64(motherSum) / n,
			AvgFather:    float64(fatherSum) / n,
		})
	}
	return stats
}
