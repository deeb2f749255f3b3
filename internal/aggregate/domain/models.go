// Package domain describes usage totals derived from the event ledger.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Period is the half-open range [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && p.Start.Before(p.End)
}

func (p Period) UTC() Period {
	return Period{Start: p.Start.UTC(), End: p.End.UTC()}
}

// Aggregate is recomputed from usage rows on every call.
type Aggregate struct {
	UserID          uuid.UUID `json:"user_id"`
	Feature         string    `json:"feature,omitempty"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	UsageCount      int64     `json:"usage_count"`
	TotalCost       float64   `json:"total_cost"`
	TotalTokens     int64     `json:"total_tokens"`
	AvgResponseTime float64   `json:"avg_response_time"`
	SuccessRate     float64   `json:"success_rate"`
}

// Totals is the raw row produced by the repository.
type Totals struct {
	Feature             string  `gorm:"column:feature"`
	UsageCount          int64   `gorm:"column:usage_count"`
	TotalCost           float64 `gorm:"column:total_cost"`
	TotalTokens         int64   `gorm:"column:total_tokens"`
	EffectiveRequests   int64   `gorm:"column:effective_requests"`
	SuccessfulRequests  int64   `gorm:"column:successful_requests"`
	TotalResponseTimeMS int64   `gorm:"column:total_response_time_ms"`
}

// AvgResponseTime averages over requests that were not compensated.
func (t Totals) AvgResponseTime() float64 {
	if t.EffectiveRequests <= 0 {
		return 0
	}
	return float64(t.TotalResponseTimeMS) / float64(t.EffectiveRequests)
}

// SuccessRate is a percentage in [0, 100]; 0 when nothing counted.
func (t Totals) SuccessRate() float64 {
	if t.EffectiveRequests <= 0 {
		return 0
	}
	return float64(t.SuccessfulRequests) / float64(t.EffectiveRequests) * 100
}
