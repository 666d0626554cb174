package eval

// ExtractLabel probes fields for primary, then each fallback in order, and
// returns the first non-empty value.
func ExtractLabel(fields map[string]string, primary string, fallbacks []string) (string, bool) {
	if v := fields[primary]; v != "" {
		return v, true
	}
	for _, name := range fallbacks {
		if v := fields[name]; v != "" {
			return v, true
		}
	}
	return "", false
}

// Recall returns the fraction of retrieved labels equal to truth, 0 when
// nothing was retrieved.
func Recall(truth string, retrieved []string) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	matches := 0
	for _, l := range retrieved {
		if l == truth {
			matches++
		}
	}
	return float64(matches) / float64(len(retrieved))
}

// Hit returns 1 when truth is among the retrieved labels, else 0.
func Hit(truth string, retrieved []string) int {
	for _, l := range retrieved {
		if l == truth {
			return 1
		}
	}
	return 0
}

// Score builds the result for q from its retrieved labels.
func Score(q LabeledQuery, retrieved []string) QueryResult {
	if retrieved == nil {
		retrieved = []string{}
	}
	return QueryResult{
		Label:           q.Label,
		QueryText:       q.Text,
		RetrievedLabels: retrieved,
		RecallAtK:       Recall(q.Label, retrieved),
		HitAtK:          Hit(q.Label, retrieved),
	}
}
