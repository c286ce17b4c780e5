package assistant

import (
	"strings"
	"testing"

	"github.com/quailyquaily/taskmorph/llm"
)

func TestEstimateUsage(t *testing.T) {
	cases := []struct {
		name     string
		messages []llm.Message
		maxChars int
		want     float64
	}{
		{
			name:     "empty",
			maxChars: 100,
			want:     0,
		},
		{
			name: "counts role and content",
			messages: []llm.Message{
				{Role: "user", Content: "abcdef"}, // 4 + 6
			},
			maxChars: 100,
			want:     0.1,
		},
		{
			name: "cyrillic counts characters not bytes",
			messages: []llm.Message{
				{Role: "user", Content: strings.Repeat("я", 846)}, // 4 + 846 runes, 1696 bytes
			},
			maxChars: 2000,
			want:     0.425,
		},
		{
			name: "zero budget is unbounded",
			messages: []llm.Message{
				{Role: "user", Content: "hello"},
			},
			maxChars: 0,
			want:     0,
		},
		{
			name: "negative budget is unbounded",
			messages: []llm.Message{
				{Role: "user", Content: "hello"},
			},
			maxChars: -1,
			want:     0,
		},
	}
	for _, tc := range cases {
		if got := EstimateUsage(tc.messages, tc.maxChars); got != tc.want {
			t.Fatalf("%s: EstimateUsage() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEstimateUsage_WarnBoundary(t *testing.T) {
	const maxChars = 1000
	threshold := DefaultConfig().WarnThreshold

	// role "user" (4) + content (846) = 850 chars = exactly 0.85.
	exact := []llm.Message{{Role: "user", Content: strings.Repeat("x", 846)}}
	if usage := EstimateUsage(exact, maxChars); usage < threshold {
		t.Fatalf("EstimateUsage() = %v, want >= %v", usage, threshold)
	}

	below := []llm.Message{{Role: "user", Content: strings.Repeat("x", 845)}}
	if usage := EstimateUsage(below, maxChars); usage >= threshold {
		t.Fatalf("EstimateUsage() = %v, want < %v", usage, threshold)
	}
}
