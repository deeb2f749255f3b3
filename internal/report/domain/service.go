package domain

import (
	"context"
	"time"

	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/pkg/db/pagination"
)

// SummaryRequest defaults to the current calendar month when both bounds are zero.
type SummaryRequest struct {
	UserID      string    `form:"user_id"`
	PeriodStart time.Time `form:"period_start" time_format:"2006-01-02T15:04:05Z07:00"`
	PeriodEnd   time.Time `form:"period_end" time_format:"2006-01-02T15:04:05Z07:00"`
}

type CreateSuggestionRequest struct {
	UserID           string  `json:"user_id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Impact           string  `json:"impact"`
	EstimatedSavings float64 `json:"estimated_savings"`
	Feature          string  `json:"feature"`
}

type UpdateSuggestionRequest struct {
	ID               string   `json:"-"`
	Title            *string  `json:"title"`
	Description      *string  `json:"description"`
	Impact           *string  `json:"impact"`
	EstimatedSavings *float64 `json:"estimated_savings"`
	Feature          *string  `json:"feature"`
}

type ListSuggestionsRequest struct {
	UserID    string `form:"user_id"`
	Applied   *bool  `form:"applied"`
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type ListSuggestionsResponse struct {
	pagination.PageInfo
	Suggestions []Suggestion `json:"suggestions"`
}

type Service interface {
	Summarize(ctx context.Context, actor auth.Principal, req SummaryRequest) (Summary, error)
	RenderSummaryPDF(ctx context.Context, actor auth.Principal, req SummaryRequest) ([]byte, error)

	CreateSuggestion(ctx context.Context, actor auth.Principal, req CreateSuggestionRequest) (*Suggestion, error)
	ListSuggestions(ctx context.Context, actor auth.Principal, req ListSuggestionsRequest) (ListSuggestionsResponse, error)
	GetSuggestion(ctx context.Context, actor auth.Principal, id string) (*Suggestion, error)
	UpdateSuggestion(ctx context.Context, actor auth.Principal, req UpdateSuggestionRequest) (*Suggestion, error)
	DeleteSuggestion(ctx context.Context, actor auth.Principal, id string) error
	ApplySuggestion(ctx context.Context, actor auth.Principal, id string) (*Suggestion, error)
}
