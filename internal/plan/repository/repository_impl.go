package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	plandomain "github.com/lukasai/lukas/internal/plan/domain"
)

type repo struct{}

func Provide() plandomain.Repository {
	return &repo{}
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*plandomain.Plan, error) {
	var plan plandomain.Plan
	err := db.WithContext(ctx).Where("code = ?", code).Take(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*plandomain.Plan, error) {
	stmt := db.WithContext(ctx).Model(&plandomain.Plan{})
	if activeOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	var plans []*plandomain.Plan
	if err := stmt.Order("price ASC").Order("code ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, plan *plandomain.Plan) error {
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, plan *plandomain.Plan) error {
	return db.WithContext(ctx).
		Model(&plandomain.Plan{}).
		Where("id = ?", plan.ID).
		Updates(map[string]any{
			"display_name":  plan.DisplayName,
			"price":         plan.Price,
			"currency":      plan.Currency,
			"billing_cycle": plan.BillingCycle,
			"features":      plan.Features,
			"is_active":     plan.IsActive,
			"updated_at":    plan.UpdatedAt,
		}).Error
}
