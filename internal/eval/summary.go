package eval

import "sort"

// LabelStats aggregates the results of one label's queries.
type LabelStats struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	MeanRecall float64 `json:"mean_recall"`
	HitRate    float64 `json:"hit_rate"`
}

// Summary aggregates a run. PerLabel is ordered by first appearance of the
// label in the results.
type Summary struct {
	Queries    int          `json:"queries"`
	MeanRecall float64      `json:"mean_recall"`
	HitRate    float64      `json:"hit_rate"`
	PerLabel   []LabelStats `json:"per_label"`
}

// Summarize computes overall and per-label means. An empty result set yields
// zero means.
func Summarize(results []QueryResult) Summary {
	s := Summary{Queries: len(results), PerLabel: []LabelStats{}}

	type acc struct {
		n      int
		recall float64
		hits   int
	}
	var (
		order  []string
		totals = make(map[string]*acc)
		recall float64
		hits   int
	)
	for _, r := range results {
		recall += r.RecallAtK
		hits += r.HitAtK

		a, ok := totals[r.Label]
		if !ok {
			a = &acc{}
			totals[r.Label] = a
			order = append(order, r.Label)
		}
		a.n++
		a.recall += r.RecallAtK
		a.hits += r.HitAtK
	}

	n := float64(max(1, len(results)))
	s.MeanRecall = recall / n
	s.HitRate = float64(hits) / n

	for _, label := range order {
		a := totals[label]
		s.PerLabel = append(s.PerLabel, LabelStats{
			Label:      label,
			Count:      a.n,
			MeanRecall: a.recall / float64(a.n),
			HitRate:    float64(a.hits) / float64(a.n),
		})
	}
	return s
}

// Worst returns the m results with the lowest recall. Ties keep their
// original order. The input is not modified.
func Worst(results []QueryResult, m int) []QueryResult {
	if m <= 0 {
		return []QueryResult{}
	}
	sorted := make([]QueryResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecallAtK < sorted[j].RecallAtK
	})
	if m > len(sorted) {
		m = len(sorted)
	}
	return sorted[:m]
}
