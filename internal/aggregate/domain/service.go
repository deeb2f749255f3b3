package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lukasai/lukas/internal/auth"
)

type AggregateRequest struct {
	UserID      string    `form:"user_id"`
	Feature     string    `form:"feature"`
	PeriodStart time.Time `form:"period_start" time_format:"2006-01-02T15:04:05Z07:00"`
	PeriodEnd   time.Time `form:"period_end" time_format:"2006-01-02T15:04:05Z07:00"`
}

type Service interface {
	Aggregate(ctx context.Context, actor auth.Principal, req AggregateRequest) (Aggregate, error)

	// CountInPeriod, Overall and ByFeature serve other services and skip authorization.
	CountInPeriod(ctx context.Context, userID uuid.UUID, feature string, period Period) (int64, error)
	Overall(ctx context.Context, userID uuid.UUID, period Period) (Aggregate, error)
	ByFeature(ctx context.Context, userID uuid.UUID, period Period) ([]Aggregate, error)
}
