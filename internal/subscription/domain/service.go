package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lukasai/lukas/internal/auth"
)

type AssignRequest struct {
	UserID           string     `json:"user_id"`
	PlanCode         string     `json:"plan_code"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
}

type Service interface {
	// GetActive returns nil, nil when the user has no active subscription.
	GetActive(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	Current(ctx context.Context, actor auth.Principal, userID string) (*Subscription, error)
	ListByUser(ctx context.Context, actor auth.Principal, userID string) ([]Subscription, error)
	Assign(ctx context.Context, actor auth.Principal, req AssignRequest) (*Subscription, error)
	Cancel(ctx context.Context, actor auth.Principal, id string) (*Subscription, error)

	ApplyProviderEvent(ctx context.Context, event ProviderEvent) (*Subscription, error)
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}
