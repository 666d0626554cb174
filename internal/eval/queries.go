package eval

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// querySet is the on-disk layout of a query file:
//
//	queries:
//	  - label: homelab
//	    text: Which switch should I buy for a 10GbE home rack?
type querySet struct {
	Queries []LabeledQuery `yaml:"queries"`
}

// LoadQueries reads a YAML query set. Labels and texts are trimmed; an entry
// with an empty label or text is an error naming its index.
func LoadQueries(path string) ([]LabeledQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eval: read queries %s: %w", path, err)
	}

	var set querySet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("eval: parse queries %s: %w", path, err)
	}
	if len(set.Queries) == 0 {
		return nil, fmt.Errorf("eval: %s: %w", path, ErrNoQueries)
	}

	out := make([]LabeledQuery, 0, len(set.Queries))
	for i, q := range set.Queries {
		q.Label = strings.TrimSpace(q.Label)
		q.Text = strings.TrimSpace(q.Text)
		if q.Label == "" || q.Text == "" {
			return nil, fmt.Errorf("eval: %s: query %d needs both label and text", path, i)
		}
		out = append(out, q)
	}
	return out, nil
}
