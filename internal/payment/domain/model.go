// Package domain holds payment webhook events and the adapter contract.
package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"

	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
)

// EventRecord dedupes webhook deliveries by (provider, provider_event_id).
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// WebhookEvent is the canonical event parsed by adapters.
type WebhookEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	OccurredAt      time.Time
	Subscription    subscriptiondomain.ProviderEvent
}

type AdapterConfig struct {
	WebhookSecret string
	// Tolerance bounds the age of a signed timestamp; zero disables the check.
	Tolerance time.Duration
	Now       func() time.Time
}

type Adapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	// Parse returns ErrEventIgnored for event types that do not change a subscription.
	Parse(ctx context.Context, payload []byte) (*WebhookEvent, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}

type WebhookStatus string

const (
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusDuplicate WebhookStatus = "duplicate"
	WebhookStatusIgnored   WebhookStatus = "ignored"
)

type WebhookResult struct {
	Status         WebhookStatus `json:"status"`
	EventID        string        `json:"event_id,omitempty"`
	SubscriptionID string        `json:"subscription_id,omitempty"`
}

type Service interface {
	HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (WebhookResult, error)
}
