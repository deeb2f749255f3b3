// Package pricing converts token counts to USD cost.
package pricing

import (
	"math"
	"strings"
)

const wildcard = "*"

// Rate is USD per 1K tokens.
type Rate struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Table maps provider to model to rate. Each provider may carry a "*" entry
// used for models it does not list.
type Table map[string]map[string]Rate

// Default is the built-in price list.
var Default = Table{
	"openai": {
		"gpt-4o":        {InputPer1K: 0.0025, OutputPer1K: 0.01},
		"gpt-4o-mini":   {InputPer1K: 0.00015, OutputPer1K: 0.0006},
		"gpt-4.1":       {InputPer1K: 0.002, OutputPer1K: 0.008},
		"gpt-4.1-mini":  {InputPer1K: 0.0004, OutputPer1K: 0.0016},
		"gpt-3.5-turbo": {InputPer1K: 0.0005, OutputPer1K: 0.0015},
		wildcard:        {InputPer1K: 0.01, OutputPer1K: 0.03},
	},
	"azure": {
		"gpt-4o":      {InputPer1K: 0.0025, OutputPer1K: 0.01},
		"gpt-4o-mini": {InputPer1K: 0.00015, OutputPer1K: 0.0006},
		wildcard:      {InputPer1K: 0.01, OutputPer1K: 0.03},
	},
	"anthropic": {
		"claude-sonnet-4-20250514":  {InputPer1K: 0.003, OutputPer1K: 0.015},
		"claude-opus-4-20250514":    {InputPer1K: 0.015, OutputPer1K: 0.075},
		"claude-3-5-haiku-20241022": {InputPer1K: 0.0008, OutputPer1K: 0.004},
		wildcard:                    {InputPer1K: 0.003, OutputPer1K: 0.015},
	},
	"gemini": {
		"gemini-2.0-flash": {InputPer1K: 0.0001, OutputPer1K: 0.0004},
		"gemini-1.5-pro":   {InputPer1K: 0.00125, OutputPer1K: 0.005},
		wildcard:           {InputPer1K: 0.001, OutputPer1K: 0.004},
	},
	"ollama": {
		wildcard: {},
	},
}

// Lookup returns the rate for provider and model, falling back to the
// provider wildcard. ok is false when neither exists.
func (t Table) Lookup(provider, model string) (Rate, bool) {
	models, ok := t[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return Rate{}, false
	}
	if rate, ok := models[strings.TrimSpace(model)]; ok {
		return rate, true
	}
	rate, ok := models[wildcard]
	return rate, ok
}

// Cost prices a call, rounded to 6 decimal places. Unknown providers cost 0.
func (t Table) Cost(provider, model string, inputTokens, outputTokens int64) float64 {
	rate, ok := t.Lookup(provider, model)
	if !ok {
		return 0
	}
	cost := float64(inputTokens)/1000*rate.InputPer1K + float64(outputTokens)/1000*rate.OutputPer1K
	return math.Round(cost*1e6) / 1e6
}
