package domain

import (
	"context"
	"time"

	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/pkg/db/pagination"
)

// RecordRequest describes one AI invocation. UserID defaults to the actor.
type RecordRequest struct {
	UserID         string         `json:"user_id"`
	Feature        string         `json:"feature"`
	Model          string         `json:"model"`
	Provider       string         `json:"provider"`
	InputTokens    int64          `json:"input_tokens"`
	OutputTokens   int64          `json:"output_tokens"`
	TokensUsed     *int64         `json:"tokens_used"`
	Cost           float64        `json:"cost"`
	ResponseTimeMS int64          `json:"response_time_ms"`
	Success        *bool          `json:"success"`
	IdempotencyKey string         `json:"idempotency_key"`
	Metadata       map[string]any `json:"metadata"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

type CompensateRequest struct {
	EventID string `json:"-"`
	Reason  string `json:"reason"`
}

type ListRequest struct {
	UserID    string    `form:"user_id"`
	Feature   string    `form:"feature"`
	From      time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To        time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	PageToken string    `form:"page_token"`
	PageSize  int       `form:"page_size"`
}

type ListResponse struct {
	pagination.PageInfo
	UsageEvents []UsageEvent `json:"usage_events"`
}

type Service interface {
	Record(ctx context.Context, actor auth.Principal, req RecordRequest) (*UsageEvent, error)
	Compensate(ctx context.Context, actor auth.Principal, req CompensateRequest) (*UsageEvent, error)
	Get(ctx context.Context, actor auth.Principal, id string) (*UsageEvent, error)
	List(ctx context.Context, actor auth.Principal, req ListRequest) (ListResponse, error)
}
