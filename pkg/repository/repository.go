package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lukasai/lukas/pkg/db/option"
)

// Repository is a thin generic CRUD store for simple tables.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID any, fields map[string]any) (int64, error)
	Delete(ctx context.Context, resourceID any) (int64, error)
	Count(ctx context.Context, query *T) (int64, error)
}
