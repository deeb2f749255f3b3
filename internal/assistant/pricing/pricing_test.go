package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCost(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		in, out  int64
		want     float64
	}{
		{"known model", "openai", "gpt-4o-mini", 1000, 1000, 0.00075},
		{"wildcard", "openai", "gpt-unknown", 1000, 0, 0.01},
		{"case insensitive provider", "Anthropic", "claude-sonnet-4-20250514", 2000, 1000, 0.021},
		{"free provider", "ollama", "llama3", 50000, 50000, 0},
		{"unknown provider", "nowhere", "x", 1000, 1000, 0},
		{"zero tokens", "gemini", "gemini-2.0-flash", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Default.Cost(tt.provider, tt.model, tt.in, tt.out), 1e-9)
		})
	}
}

func TestLookupFallsBackToWildcard(t *testing.T) {
	table := Table{"p": {"*": {InputPer1K: 1}}}
	rate, ok := table.Lookup("p", "anything")
	assert.True(t, ok)
	assert.Equal(t, 1.0, rate.InputPer1K)

	_, ok = Table{"p": {"m": {}}}.Lookup("p", "other")
	assert.False(t, ok)
}
