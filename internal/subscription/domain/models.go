// Package domain contains the user subscription model that selects a quota plan.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription binds a user to a plan. At most one row per user is active.
type Subscription struct {
	ID                     snowflake.ID       `gorm:"primaryKey" json:"id"`
	UserID                 uuid.UUID          `gorm:"type:uuid;not null;index" json:"user_id"`
	PlanCode               string             `gorm:"type:text;not null" json:"plan_code"`
	Status                 SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	CurrentPeriodStart     time.Time          `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end,omitempty"`
	Provider               *string            `gorm:"type:text" json:"provider,omitempty"`
	ExternalCustomerID     *string            `gorm:"type:text" json:"external_customer_id,omitempty"`
	ExternalSubscriptionID *string            `gorm:"type:text" json:"external_subscription_id,omitempty"`
	CancelledAt            *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt              time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time          `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "user_subscriptions" }

// ActiveAt reports whether the subscription grants its plan at t.
func (s *Subscription) ActiveAt(t time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive {
		return false
	}
	if s.CurrentPeriodEnd != nil && !t.Before(*s.CurrentPeriodEnd) {
		return false
	}
	return true
}

// ProviderEvent is a provider-neutral subscription change from a payment webhook.
type ProviderEvent struct {
	Provider               string
	ExternalSubscriptionID string
	ExternalCustomerID     string
	// UserID comes from checkout metadata; required when the subscription is new.
	UserID      uuid.UUID
	PlanCode    string
	Status      SubscriptionStatus
	PeriodStart time.Time
	PeriodEnd   time.Time
}
