package llm

import "testing"

func TestUsageTotals(t *testing.T) {
	u := Usage{
		InputTokens:  100,
		OutputTokens: 50,
		TotalTokens:  150,
	}
	if u.TotalTokens != u.InputTokens+u.OutputTokens {
		t.Errorf("TotalTokens = %d, want %d", u.TotalTokens, u.InputTokens+u.OutputTokens)
	}
}

func TestRequestDefaultsToZeroTemperature(t *testing.T) {
	r := Request{Model: "gpt-4o"}
	if r.Temperature != 0 {
		t.Errorf("Temperature = %f, want 0", r.Temperature)
	}
}
