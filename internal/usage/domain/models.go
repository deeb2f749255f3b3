// Package domain contains the append-only usage ledger model.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Feature is an AI capability whose usage is metered.
type Feature string

const (
	FeatureChat             Feature = "chat"
	FeatureDocumentQA       Feature = "document_qa"
	FeatureDocumentAnalysis Feature = "document_analysis"
	FeatureMeetingSummary   Feature = "meeting_summary"
	FeatureWorkflow         Feature = "workflow"
)

var features = []Feature{
	FeatureChat,
	FeatureDocumentQA,
	FeatureDocumentAnalysis,
	FeatureMeetingSummary,
	FeatureWorkflow,
}

// Features returns the closed set of metered features.
func Features() []Feature {
	out := make([]Feature, len(features))
	copy(out, features)
	return out
}

func ParseFeature(raw string) (Feature, bool) {
	candidate := Feature(strings.ToLower(strings.TrimSpace(raw)))
	for _, f := range features {
		if f == candidate {
			return f, true
		}
	}
	return "", false
}

type Kind string

const (
	KindUsage        Kind = "usage"
	KindCompensation Kind = "compensation"
)

// UsageEvent is one AI invocation, or the reversal of one. Rows are never
// updated or deleted; corrections are new rows with Kind compensation.
type UsageEvent struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID         uuid.UUID         `gorm:"type:uuid;not null" json:"user_id"`
	Feature        Feature           `gorm:"type:text;not null" json:"feature"`
	Model          string            `gorm:"type:text" json:"model,omitempty"`
	Provider       string            `gorm:"type:text" json:"provider,omitempty"`
	InputTokens    int64             `gorm:"not null" json:"input_tokens"`
	OutputTokens   int64             `gorm:"not null" json:"output_tokens"`
	TokensUsed     int64             `gorm:"not null" json:"tokens_used"`
	Cost           float64           `gorm:"not null" json:"cost"`
	ResponseTimeMS int64             `gorm:"column:response_time_ms;not null" json:"response_time_ms"`
	Success        bool              `gorm:"not null" json:"success"`
	Units          int64             `gorm:"not null" json:"units"`
	Kind           Kind              `gorm:"type:text;not null" json:"kind"`
	CompensatesID  *snowflake.ID     `json:"compensates_id,omitempty"`
	IdempotencyKey *string           `gorm:"type:text" json:"idempotency_key,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	OccurredAt     time.Time         `gorm:"not null" json:"occurred_at"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

func (UsageEvent) TableName() string { return "usage_events" }
