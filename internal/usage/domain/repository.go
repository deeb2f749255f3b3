package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID   uuid.UUID
	Feature  Feature
	From     time.Time
	To       time.Time
	BeforeID snowflake.ID
	Limit    int
}

// Repository is append-only: there is no update or delete.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *UsageEvent) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*UsageEvent, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, userID uuid.UUID, key string) (*UsageEvent, error)
	FindCompensation(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (*UsageEvent, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*UsageEvent, error)
}
