package domain

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Filter struct {
	UserID  uuid.UUID
	Feature string
	Period  Period
}

type Repository interface {
	Sum(ctx context.Context, db *gorm.DB, filter Filter) (Totals, error)
	SumByFeature(ctx context.Context, db *gorm.DB, filter Filter) ([]Totals, error)
}
