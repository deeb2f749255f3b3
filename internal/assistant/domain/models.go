// Package domain describes metered calls to AI providers.
package domain

import (
	"github.com/bwmarrin/snowflake"

	quotadomain "github.com/lukasai/lukas/internal/quota/domain"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is what a provider adapter receives after the feature
// prompt has been applied.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

type Completion struct {
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

type InvokeRequest struct {
	UserID      string            `json:"user_id"`
	Feature     string            `json:"-"`
	Provider    string            `json:"provider"`
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature *float64          `json:"temperature"`
	Context     map[string]string `json:"context"`
}

type InvokeResponse struct {
	Content        string                `json:"content"`
	Provider       string                `json:"provider"`
	Model          string                `json:"model"`
	InputTokens    int64                 `json:"input_tokens"`
	OutputTokens   int64                 `json:"output_tokens"`
	Cost           float64               `json:"cost"`
	ResponseTimeMS int64                 `json:"response_time_ms"`
	UsageEventID   snowflake.ID          `json:"usage_event_id,omitempty"`
	Quota          *quotadomain.Decision `json:"quota,omitempty"`
}
