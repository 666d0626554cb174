package eval

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteReport renders the per-label table, the overall means and the worst
// queries as plain text.
func WriteReport(w io.Writer, summary Summary, worst []QueryResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "LABEL\tQUERIES\tRECALL@K\tHIT@K")
	for _, ls := range summary.PerLabel {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\n", ls.Label, ls.Count, ls.MeanRecall, ls.HitRate)
	}
	fmt.Fprintf(tw, "OVERALL\t%d\t%.3f\t%.3f\n", summary.Queries, summary.MeanRecall, summary.HitRate)
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("eval: write report: %w", err)
	}

	if len(worst) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w, "\nLowest recall queries:\n"); err != nil {
		return fmt.Errorf("eval: write report: %w", err)
	}
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECALL@K\tLABEL\tQUERY\tRETRIEVED")
	for _, r := range worst {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", r.RecallAtK, r.Label, truncate(r.QueryText, 60), strings.Join(r.RetrievedLabels, ","))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("eval: write report: %w", err)
	}
	return nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
