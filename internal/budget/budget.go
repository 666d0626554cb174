// Package budget provides token budget estimation for grounded prompts.
// Because answers can come from several LLM backends with different
// tokenizers, it uses a character heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// It fits 8k-context local models such as llama3.2:3b and mistral:7b
	// while leaving room for the answer.
	DefaultMaxContextTokens = 6000

	// messageOverhead is the per-message framing cost in most chat APIs.
	messageOverhead = 4
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Fit returns how many leading sections fit in maxTokens next to the fixed
// messages. Sections are ranked best first, so the excess is dropped from the
// tail. Zero is returned when even the first section does not fit.
func Fit(fixed []*schema.Message, sections []string, maxTokens int) int {
	used := EstimateMessages(fixed)
	for i, s := range sections {
		used += Estimate(s)
		if used > maxTokens {
			return i
		}
	}
	return len(sections)
}
