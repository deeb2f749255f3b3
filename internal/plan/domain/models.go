// Package domain holds subscription plans and their per-feature quota limits.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// Limits maps a feature to its monthly cap. A nil value, or a feature that is
// missing from the map, means unlimited.
type Limits map[string]*int64

type Plan struct {
	ID           snowflake.ID               `gorm:"primaryKey" json:"id"`
	Code         string                     `gorm:"type:text;not null;uniqueIndex" json:"code"`
	DisplayName  string                     `gorm:"type:text;not null" json:"display_name"`
	Price        float64                    `gorm:"not null" json:"price"`
	Currency     string                     `gorm:"type:text;not null" json:"currency"`
	BillingCycle BillingCycle               `gorm:"type:text;not null" json:"billing_cycle"`
	Features     datatypes.JSONType[Limits] `gorm:"type:jsonb;not null" json:"features"`
	IsActive     bool                       `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time                  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time                  `gorm:"not null" json:"updated_at"`
}

func (Plan) TableName() string { return "subscription_plans" }

// Limit returns the cap for feature, or nil when the plan leaves it unlimited.
func (p *Plan) Limit(feature string) *int64 {
	if p == nil {
		return nil
	}
	limit, ok := p.Features.Data()[feature]
	if !ok || limit == nil || *limit < 0 {
		return nil
	}
	value := *limit
	return &value
}
