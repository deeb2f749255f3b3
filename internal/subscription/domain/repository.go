package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	Update(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByExternalIDForUpdate(ctx context.Context, db *gorm.DB, provider, externalID string) (*Subscription, error)
	FindActiveByUserID(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*Subscription, error)
	ListByUserID(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]Subscription, error)
	// DeactivateOthers moves every other active row of the user to status.
	DeactivateOthers(ctx context.Context, db *gorm.DB, userID uuid.UUID, keepID snowflake.ID, status SubscriptionStatus, at time.Time) error
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error)
	MarkExpired(ctx context.Context, db *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error)
}
