package domain

import (
	"context"

	"github.com/lukasai/lukas/internal/auth"
)

type UpsertRequest struct {
	Code         string            `json:"-"`
	DisplayName  string            `json:"display_name"`
	Price        float64           `json:"price"`
	Currency     string            `json:"currency"`
	BillingCycle string            `json:"billing_cycle"`
	Features     map[string]*int64 `json:"features"`
	IsActive     *bool             `json:"is_active"`
}

type Service interface {
	// LimitFor returns nil for unlimited features.
	LimitFor(plan *Plan, feature string) (*int64, error)
	// Resolve falls back to the configured fallback plan for unknown or inactive codes.
	Resolve(ctx context.Context, code string) (*Plan, error)
	Fallback() *Plan

	List(ctx context.Context) ([]*Plan, error)
	Upsert(ctx context.Context, actor auth.Principal, req UpsertRequest) (*Plan, error)
	// SyncFromConfig writes every configured plan to the database.
	SyncFromConfig(ctx context.Context) error
}
