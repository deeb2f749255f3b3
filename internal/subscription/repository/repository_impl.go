package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ?", subscription.ID).
		Updates(map[string]any{
			"plan_code":            subscription.PlanCode,
			"status":               subscription.Status,
			"current_period_start": subscription.CurrentPeriodStart,
			"current_period_end":   subscription.CurrentPeriodEnd,
			"external_customer_id": subscription.ExternalCustomerID,
			"cancelled_at":         subscription.CancelledAt,
			"updated_at":           subscription.UpdatedAt,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Where("id = ?", id).Take(&subscription).Error
	return found(&subscription, err)
}

// FindByIDForUpdate locks the row on postgres; sqlite ignores the locking clause.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&subscription).Error
	return found(&subscription, err)
}

func (r *repo) FindByExternalIDForUpdate(ctx context.Context, db *gorm.DB, provider, externalID string) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND external_subscription_id = ?", provider, externalID).
		Take(&subscription).Error
	return found(&subscription, err)
}

func (r *repo) FindActiveByUserID(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, subscriptiondomain.SubscriptionStatusActive).
		Order("current_period_start DESC").
		Order("id DESC").
		Take(&subscription).Error
	return found(&subscription, err)
}

func (r *repo) ListByUserID(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]subscriptiondomain.Subscription, error) {
	var subscriptions []subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) DeactivateOthers(ctx context.Context, db *gorm.DB, userID uuid.UUID, keepID snowflake.ID, status subscriptiondomain.SubscriptionStatus, at time.Time) error {
	fields := map[string]any{
		"status":     status,
		"updated_at": at,
	}
	if status == subscriptiondomain.SubscriptionStatusCancelled {
		fields["cancelled_at"] = at
	}
	return db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("user_id = ? AND status = ? AND id <> ?", userID, subscriptiondomain.SubscriptionStatusActive, keepID).
		Updates(fields).Error
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	stmt := db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("status = ? AND current_period_end IS NOT NULL AND current_period_end <= ?", subscriptiondomain.SubscriptionStatusActive, now).
		Order("current_period_end ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkExpired only touches rows that are still active.
func (r *repo) MarkExpired(ctx context.Context, db *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id IN ? AND status = ?", ids, subscriptiondomain.SubscriptionStatusActive).
		Updates(map[string]any{
			"status":     subscriptiondomain.SubscriptionStatusExpired,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func found(subscription *subscriptiondomain.Subscription, err error) (*subscriptiondomain.Subscription, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return subscription, nil
}
