// Package domain holds cost summaries and optimization suggestions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

type SuggestionStatus string

const (
	SuggestionStatusProposed SuggestionStatus = "proposed"
	SuggestionStatusApplied  SuggestionStatus = "applied"
)

// Suggestion is a cost optimization proposal. Its only transition is
// proposed to applied.
type Suggestion struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID           uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	Title            string       `gorm:"type:text;not null" json:"title"`
	Description      *string      `gorm:"type:text" json:"description,omitempty"`
	Impact           Impact       `gorm:"type:text;not null" json:"impact"`
	EstimatedSavings float64      `gorm:"not null" json:"estimated_savings"`
	Feature          *string      `gorm:"type:text" json:"feature,omitempty"`
	IsApplied        bool         `gorm:"not null" json:"is_applied"`
	AppliedAt        *time.Time   `json:"applied_at,omitempty"`
	CreatedAt        time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null" json:"updated_at"`
}

func (Suggestion) TableName() string { return "optimization_suggestions" }

func (s *Suggestion) Status() SuggestionStatus {
	if s.IsApplied {
		return SuggestionStatusApplied
	}
	return SuggestionStatusProposed
}

type FeatureSummary struct {
	Feature         string  `json:"feature"`
	UsageCount      int64   `json:"usage_count"`
	TotalCost       float64 `json:"total_cost"`
	TotalTokens     int64   `json:"total_tokens"`
	AvgResponseTime float64 `json:"avg_response_time"`
	SuccessRate     float64 `json:"success_rate"`
}

// Summary is all zeros with an empty breakdown when the period has no usage.
type Summary struct {
	UserID          uuid.UUID        `json:"user_id"`
	PeriodStart     time.Time        `json:"period_start"`
	PeriodEnd       time.Time        `json:"period_end"`
	TotalCost       float64          `json:"total_cost"`
	TotalTokens     int64            `json:"total_tokens"`
	TotalRequests   int64            `json:"total_requests"`
	AvgResponseTime float64          `json:"avg_response_time"`
	SuccessRate     float64          `json:"success_rate"`
	Features        []FeatureSummary `json:"features"`
}
