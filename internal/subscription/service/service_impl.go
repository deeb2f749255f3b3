package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	plandomain "github.com/lukasai/lukas/internal/plan/domain"
	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
	"github.com/lukasai/lukas/pkg/rls"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Authz authorization.Service
	Repo  subscriptiondomain.Repository
	Plans plandomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	authz authorization.Service
	repo  subscriptiondomain.Repository
	plans plandomain.Service
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID: p.GenID,
		clock: p.Clock,
		authz: p.Authz,
		repo:  p.Repo,
		plans: p.Plans,
	}
}

func (s *Service) GetActive(ctx context.Context, userID uuid.UUID) (*subscriptiondomain.Subscription, error) {
	if userID == uuid.Nil {
		return nil, subscriptiondomain.ErrInvalidUser
	}

	var subscription *subscriptiondomain.Subscription
	err := rls.Transaction(ctx, s.db, userID, func(tx *gorm.DB) error {
		var err error
		subscription, err = s.repo.FindActiveByUserID(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	// rows past their period end stay active until the expiry job runs
	if !subscription.ActiveAt(s.clock.Now()) {
		return nil, nil
	}
	return subscription, nil
}

func (s *Service) Current(ctx context.Context, actor auth.Principal, userID string) (*subscriptiondomain.Subscription, error) {
	targetID, err := resolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.AuthorizeUser(ctx, actor, targetID, authorization.ObjectSubscription, authorization.ActionRead); err != nil {
		return nil, err
	}
	subscription, err := s.GetActive(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return subscription, nil
}

func (s *Service) ListByUser(ctx context.Context, actor auth.Principal, userID string) ([]subscriptiondomain.Subscription, error) {
	targetID, err := resolveUser(actor, userID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.AuthorizeUser(ctx, actor, targetID, authorization.ObjectSubscription, authorization.ActionRead); err != nil {
		return nil, err
	}

	var items []subscriptiondomain.Subscription
	err = rls.Transaction(ctx, s.db, targetID, func(tx *gorm.DB) error {
		var err error
		items, err = s.repo.ListByUserID(ctx, tx, targetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Assign gives a user a plan by hand, replacing any active subscription.
func (s *Service) Assign(ctx context.Context, actor auth.Principal, req subscriptiondomain.AssignRequest) (*subscriptiondomain.Subscription, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectSubscription, authorization.ActionAssign); err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil || userID == uuid.Nil {
		return nil, subscriptiondomain.ErrInvalidUser
	}
	planCode, err := s.validatePlan(ctx, req.PlanCode)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var periodEnd *time.Time
	if req.CurrentPeriodEnd != nil {
		end := req.CurrentPeriodEnd.UTC()
		if !end.After(now) {
			return nil, subscriptiondomain.ErrInvalidPeriod
		}
		periodEnd = &end
	}

	subscription := &subscriptiondomain.Subscription{
		ID:                 s.genID.Generate(),
		UserID:             userID,
		PlanCode:           planCode,
		Status:             subscriptiondomain.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = rls.Transaction(ctx, s.db, userID, func(tx *gorm.DB) error {
		// At most one active row per user; demote before inserting.
		if err := s.repo.DeactivateOthers(ctx, tx, userID, subscription.ID, subscriptiondomain.SubscriptionStatusCancelled, now); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, subscription)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription assigned",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("plan_code", planCode),
		zap.String("actor_id", actor.UserID.String()),
	)
	return subscription, nil
}

func (s *Service) Cancel(ctx context.Context, actor auth.Principal, id string) (*subscriptiondomain.Subscription, error) {
	subscriptionID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || subscriptionID == 0 {
		return nil, subscriptiondomain.ErrInvalidSubscription
	}

	existing, err := s.repo.FindByID(ctx, s.db, subscriptionID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	if err := s.authz.AuthorizeUser(ctx, actor, existing.UserID, authorization.ObjectSubscription, authorization.ActionCancel); err != nil {
		if errors.Is(err, authorization.ErrForbidden) && !actor.Owns(existing.UserID) {
			return nil, subscriptiondomain.ErrSubscriptionNotFound
		}
		return nil, err
	}

	var cancelled *subscriptiondomain.Subscription
	err = rls.Transaction(ctx, s.db, existing.UserID, func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if !isTransitionAllowed(subscription.Status, subscriptiondomain.SubscriptionStatusCancelled) {
			return subscriptiondomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		subscription.Status = subscriptiondomain.SubscriptionStatusCancelled
		subscription.CancelledAt = &now
		subscription.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, subscription); err != nil {
			return err
		}
		cancelled = subscription
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("subscription cancelled",
		zap.String("subscription_id", cancelled.ID.String()),
		zap.String("actor_id", actor.UserID.String()),
	)
	return cancelled, nil
}

// ApplyProviderEvent upserts by (provider, external subscription id). Activating
// a row cancels the user's other active subscriptions.
func (s *Service) ApplyProviderEvent(ctx context.Context, event subscriptiondomain.ProviderEvent) (*subscriptiondomain.Subscription, error) {
	provider := strings.ToLower(strings.TrimSpace(event.Provider))
	if provider == "" {
		return nil, subscriptiondomain.ErrInvalidProvider
	}
	externalID := strings.TrimSpace(event.ExternalSubscriptionID)
	if externalID == "" {
		return nil, subscriptiondomain.ErrInvalidSubscription
	}
	if !isValidStatus(event.Status) {
		return nil, subscriptiondomain.ErrInvalidStatus
	}

	planCode := strings.TrimSpace(event.PlanCode)
	if planCode != "" {
		var err error
		if planCode, err = s.validatePlan(ctx, planCode); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	var result *subscriptiondomain.Subscription

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByExternalIDForUpdate(ctx, tx, provider, externalID)
		if err != nil {
			return err
		}

		isNew := subscription == nil
		if isNew {
			if event.UserID == uuid.Nil {
				return subscriptiondomain.ErrUnknownSubscriber
			}
			if planCode == "" {
				return subscriptiondomain.ErrInvalidPlan
			}
			subscription = &subscriptiondomain.Subscription{
				ID:                     s.genID.Generate(),
				UserID:                 event.UserID,
				PlanCode:               planCode,
				Status:                 event.Status,
				CurrentPeriodStart:     periodStartOr(event.PeriodStart, now),
				CurrentPeriodEnd:       optionalTime(event.PeriodEnd),
				Provider:               &provider,
				ExternalCustomerID:     optionalString(event.ExternalCustomerID),
				ExternalSubscriptionID: &externalID,
				CreatedAt:              now,
				UpdatedAt:              now,
			}
			if event.Status == subscriptiondomain.SubscriptionStatusCancelled {
				subscription.CancelledAt = &now
			}
		} else {
			if planCode != "" {
				subscription.PlanCode = planCode
			}
			if !event.PeriodStart.IsZero() {
				subscription.CurrentPeriodStart = event.PeriodStart.UTC()
			}
			if !event.PeriodEnd.IsZero() {
				subscription.CurrentPeriodEnd = optionalTime(event.PeriodEnd)
			}
			if customerID := optionalString(event.ExternalCustomerID); customerID != nil {
				subscription.ExternalCustomerID = customerID
			}
			if subscription.Status != event.Status {
				if event.Status == subscriptiondomain.SubscriptionStatusCancelled {
					subscription.CancelledAt = &now
				}
				if event.Status == subscriptiondomain.SubscriptionStatusActive {
					subscription.CancelledAt = nil
				}
				subscription.Status = event.Status
			}
			subscription.UpdatedAt = now
		}

		// Demote the previous active row first so the write never holds two.
		if subscription.Status == subscriptiondomain.SubscriptionStatusActive {
			if err := s.repo.DeactivateOthers(ctx, tx, subscription.UserID, subscription.ID, subscriptiondomain.SubscriptionStatusCancelled, now); err != nil {
				return err
			}
		}
		if isNew {
			err = s.repo.Insert(ctx, tx, subscription)
		} else {
			err = s.repo.Update(ctx, tx, subscription)
		}
		if err != nil {
			return err
		}
		result = subscription
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription synced from provider",
		zap.String("provider", provider),
		zap.String("subscription_id", result.ID.String()),
		zap.String("status", string(result.Status)),
		zap.String("plan_code", result.PlanCode),
	)
	return result, nil
}

func (s *Service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	var expired int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := s.repo.ListDue(ctx, tx, now, limit)
		if err != nil {
			return err
		}
		expired, err = s.repo.MarkExpired(ctx, tx, ids, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.log.Info("subscriptions expired", zap.Int64("count", expired))
	}
	return int(expired), nil
}

// validatePlan rejects codes that would silently resolve to the fallback plan.
func (s *Service) validatePlan(ctx context.Context, raw string) (string, error) {
	code := strings.ToLower(strings.TrimSpace(raw))
	if code == "" {
		return "", subscriptiondomain.ErrInvalidPlan
	}
	plan, err := s.plans.Resolve(ctx, code)
	if err != nil {
		return "", err
	}
	if plan == nil || plan.Code != code {
		return "", subscriptiondomain.ErrInvalidPlan
	}
	return code, nil
}

func resolveUser(actor auth.Principal, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if actor.UserID == uuid.Nil {
			return uuid.Nil, subscriptiondomain.ErrInvalidUser
		}
		return actor.UserID, nil
	}
	userID, err := uuid.Parse(raw)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, subscriptiondomain.ErrInvalidUser
	}
	return userID, nil
}

func isValidStatus(status subscriptiondomain.SubscriptionStatus) bool {
	switch status {
	case subscriptiondomain.SubscriptionStatusActive,
		subscriptiondomain.SubscriptionStatusCancelled,
		subscriptiondomain.SubscriptionStatusExpired:
		return true
	default:
		return false
	}
}

func isTransitionAllowed(current, target subscriptiondomain.SubscriptionStatus) bool {
	switch current {
	case subscriptiondomain.SubscriptionStatusActive:
		return target == subscriptiondomain.SubscriptionStatusCancelled || target == subscriptiondomain.SubscriptionStatusExpired
	default:
		return false
	}
}

func periodStartOr(t time.Time, def time.Time) time.Time {
	if t.IsZero() {
		return def
	}
	return t.UTC()
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	value := t.UTC()
	return &value
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
