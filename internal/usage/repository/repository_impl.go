package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

// Insert returns false when a row with the same (user_id, idempotency_key)
// already exists.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *usagedomain.UsageEvent) (bool, error) {
	if event == nil {
		return false, errors.New("missing_usage_event")
	}
	tx := db.WithContext(ctx)
	if event.IdempotencyKey != nil {
		tx = tx.Clauses(buildIdempotencyConflictClause(db))
	}
	result := tx.Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*usagedomain.UsageEvent, error) {
	var event usagedomain.UsageEvent
	err := db.WithContext(ctx).Where("id = ?", id).Take(&event).Error
	return found(&event, err)
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, userID uuid.UUID, key string) (*usagedomain.UsageEvent, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var event usagedomain.UsageEvent
	err := db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		Take(&event).Error
	return found(&event, err)
}

func (r *repo) FindCompensation(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (*usagedomain.UsageEvent, error) {
	var event usagedomain.UsageEvent
	err := db.WithContext(ctx).Where("compensates_id = ?", eventID).Take(&event).Error
	return found(&event, err)
}

// List pages by id descending; snowflake ids sort by creation time.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter usagedomain.ListFilter) ([]*usagedomain.UsageEvent, error) {
	stmt := db.WithContext(ctx).Where("user_id = ?", filter.UserID)
	if filter.Feature != "" {
		stmt = stmt.Where("feature = ?", filter.Feature)
	}
	if !filter.From.IsZero() {
		stmt = stmt.Where("occurred_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		stmt = stmt.Where("occurred_at < ?", filter.To)
	}
	if filter.BeforeID != 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var events []*usagedomain.UsageEvent
	if err := stmt.Order("id DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func found(event *usagedomain.UsageEvent, err error) (*usagedomain.UsageEvent, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return event, nil
}

func buildIdempotencyConflictClause(db *gorm.DB) clause.OnConflict {
	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "idempotency_key"}},
		DoNothing: true,
	}
	if db != nil && strings.EqualFold(db.Dialector.Name(), "postgres") {
		conflict.TargetWhere = clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "idempotency_key IS NOT NULL"},
		}}
	}
	return conflict
}
