package quality

import (
	"github.com/okian/riskset/internal/domain/dates"
	"github.com/okian/riskset/internal/domain/model"
)

// Dimension names used in reports and metrics.
const (
	DimensionBirth  = "birth"
	DimensionMother = "mother"
	DimensionFather = "father"
)

// DimensionStats summarizes one difference series.
type DimensionStats struct {
	Name    string
	N       int     // number of (case, control) differences in the series
	P25     int64   // days
	P50     int64   // days
	P75     int64   // days
	Balance float64 // see Balance
}

// Coverage describes how many cases were matched and with how many controls.
type Coverage struct {
	TotalCases         int
	MatchedCases       int
	TotalControls      int
	AvgControlsPerCase float64
	MatchingRate       float64
	ControlUtilization float64
}

// Report is the match-quality summary of one sampling run.
type Report struct {
	Coverage
	Birth         DimensionStats
	Mother        DimensionStats
	Father        DimensionStats
	ParentBalance float64
}

// CoverageOf derives the counting statistics from the pairs.
// Only cases with at least one control count as matched.
func CoverageOf(pairs []model.CaseControlPair, totalCases int) Coverage {
	c := Coverage{TotalCases: totalCases}
	for _, p := range pairs {
		if len(p.Controls) == 0 {
			continue
		}
		c.MatchedCases++
		c.TotalControls += len(p.Controls)
	}
	if c.MatchedCases > 0 {
		c.AvgControlsPerCase = float64(c.TotalControls) / float64(c.MatchedCases)
	}
	if totalCases > 0 {
		c.MatchingRate = float64(c.MatchedCases) / float64(totalCases)
	}
	if c.TotalControls > 0 {
		c.ControlUtilization = float64(c.MatchedCases) * c.AvgControlsPerCase / float64(c.TotalControls)
	}
	return c
}

// Series holds the per-dimension absolute differences of all pairs. Parent
// series only contain pairs where both sides have the parent's date.
type Series struct {
	Birth  []int64
	Mother []int64
	Father []int64
}

// Differences collects the difference series. days is indexed like the records.
func Differences(days []dates.DateData, pairs []model.CaseControlPair) Series {
	var s Series
	for _, p := range pairs {
		c := days[p.Case]
		for _, ctrl := range p.Controls {
			d := days[ctrl]
			s.Birth = append(s.Birth, dates.Abs(c.Birth-d.Birth))
			if diff, ok := dates.AbsDiff(c.Mother, d.Mother); ok {
				s.Mother = append(s.Mother, diff)
			}
			if diff, ok := dates.AbsDiff(c.Father, d.Father); ok {
				s.Father = append(s.Father, diff)
			}
		}
	}
	return s
}

// Evaluate builds the report for pairs drawn from a population of totalCases cases.
func Evaluate(days []dates.DateData, pairs []model.CaseControlPair, totalCases int) Report {
	s := Differences(days, pairs)
	r := Report{
		Coverage: CoverageOf(pairs, totalCases),
		Birth:    dimension(DimensionBirth, s.Birth),
		Mother:   dimension(DimensionMother, s.Mother),
		Father:   dimension(DimensionFather, s.Father),
	}
	r.ParentBalance = (r.Mother.Balance + r.Father.Balance) / 2
	return r
}

func dimension(name string, diffs []int64) DimensionStats {
	q := Percentiles(diffs, Quartiles)
	return DimensionStats{
		Name:    name,
		N:       len(diffs),
		P25:     q[0],
		P50:     q[1],
		P75:     q[2],
		Balance: Balance(diffs),
	}
}

// Dimensions returns the three dimension summaries in report order.
func (r *Report) Dimensions() []DimensionStats {
	return []DimensionStats{r.Birth, r.Mother, r.Father}
}
