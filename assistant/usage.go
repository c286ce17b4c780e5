package assistant

import (
	"unicode/utf8"

	"github.com/quailyquaily/taskmorph/llm"
)

// EstimateUsage returns the fraction of the character budget the message set
// consumes: each message counts the length of its role tag plus its content,
// in runes, so Cyrillic text is not double-counted. A non-positive budget
// reads as unbounded and yields 0.
func EstimateUsage(messages []llm.Message, maxChars int) float64 {
	if maxChars <= 0 {
		return 0
	}
	total := 0
	for _, m := range messages {
		total += utf8.RuneCountInString(m.Role) + utf8.RuneCountInString(m.Content)
	}
	return float64(total) / float64(maxChars)
}
