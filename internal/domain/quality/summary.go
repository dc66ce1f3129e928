package quality

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"
)

// Summary renders the report for the console.
func (r *Report) Summary() string {
	var b strings.Builder
	b.WriteString("Matching quality\n")

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  total cases\t%d\n", r.TotalCases)
	fmt.Fprintf(tw, "  matched cases\t%d\n", r.MatchedCases)
	fmt.Fprintf(tw, "  total controls\t%d\n", r.TotalControls)
	fmt.Fprintf(tw, "  avg controls per case\t%.2f\n", r.AvgControlsPerCase)
	fmt.Fprintf(tw, "  matching rate\t%.2f%%\n", r.MatchingRate*100)
	fmt.Fprintf(tw, "  control utilization\t%.4f\n", r.ControlUtilization)
	_ = tw.Flush()

	b.WriteString("\nDifferences in days (25th / 50th / 75th percentile)\n")
	tw = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  dimension\tn\tp25\tp50\tp75\tbalance\n")
	for _, d := range r.Dimensions() {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%s\n", d.Name, d.N, d.P25, d.P50, d.P75, formatBalance(d.Balance))
	}
	_ = tw.Flush()

	fmt.Fprintf(&b, "\nParent balance: %s\n", formatBalance(r.ParentBalance))
	return b.String()
}

func formatBalance(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}
