package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	aggregatedomain "github.com/lukasai/lukas/internal/aggregate/domain"
	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/config"
	obsmetrics "github.com/lukasai/lukas/internal/observability/metrics"
	plandomain "github.com/lukasai/lukas/internal/plan/domain"
	quotadomain "github.com/lukasai/lukas/internal/quota/domain"
	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
)

type ServiceParam struct {
	fx.In

	Config        config.Config
	Log           *zap.Logger
	Clock         clock.Clock
	Authz         authorization.Service
	Plans         plandomain.Service
	Subscriptions subscriptiondomain.Service
	Aggregates    aggregatedomain.Service
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	enforce bool

	clock         clock.Clock
	authz         authorization.Service
	plans         plandomain.Service
	subscriptions subscriptiondomain.Service
	aggregates    aggregatedomain.Service
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p ServiceParam) quotadomain.Service {
	return &Service{
		log:     p.Log.Named("quota.service"),
		enforce: p.Config.EnforceQuota(),

		clock:         p.Clock,
		authz:         p.Authz,
		plans:         p.Plans,
		subscriptions: p.Subscriptions,
		aggregates:    p.Aggregates,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Service) Check(ctx context.Context, actor auth.Principal, userID string, feature string) (quotadomain.Decision, error) {
	targetID, parsed, err := s.validate(ctx, actor, userID, feature)
	if err != nil {
		return quotadomain.Decision{}, err
	}
	return s.decide(ctx, targetID, parsed)
}

func (s *Service) Guard(ctx context.Context, actor auth.Principal, userID string, feature string) (quotadomain.Decision, error) {
	decision, err := s.Check(ctx, actor, userID, feature)
	if err != nil {
		return quotadomain.Decision{}, err
	}
	if !decision.Exceeded {
		return decision, nil
	}
	if !s.enforce {
		decision.Advisory = true
		decision.Allowed = true
		s.log.Info("quota exceeded, advisory mode",
			zap.String("feature", decision.Feature),
			zap.String("plan", decision.Plan),
			zap.Int64("used", decision.Used),
		)
		return decision, nil
	}
	return decision, quotadomain.ErrQuotaExceeded
}

func (s *Service) validate(ctx context.Context, actor auth.Principal, userID string, feature string) (uuid.UUID, usagedomain.Feature, error) {
	targetID := actor.UserID
	if raw := strings.TrimSpace(userID); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, "", quotadomain.ErrInvalidUser
		}
		targetID = parsed
	}
	if targetID == uuid.Nil {
		return uuid.Nil, "", quotadomain.ErrInvalidUser
	}

	parsed, ok := usagedomain.ParseFeature(feature)
	if !ok {
		return uuid.Nil, "", quotadomain.ErrInvalidFeature
	}

	if err := s.authz.AuthorizeUser(ctx, actor, targetID, authorization.ObjectQuota, authorization.ActionRead); err != nil {
		return uuid.Nil, "", err
	}
	return targetID, parsed, nil
}

func (s *Service) decide(ctx context.Context, userID uuid.UUID, feature usagedomain.Feature) (quotadomain.Decision, error) {
	plan := s.resolvePlan(ctx, userID)

	limit, err := s.plans.LimitFor(plan, string(feature))
	if err != nil {
		return quotadomain.Decision{}, err
	}

	start, end := clock.MonthBounds(s.clock.Now())
	decision := quotadomain.Decision{
		UserID:      userID.String(),
		Feature:     string(feature),
		Plan:        plan.Code,
		Limit:       limit,
		PeriodStart: start,
		PeriodEnd:   end,
	}

	used, err := s.aggregates.CountInPeriod(ctx, userID, string(feature), aggregatedomain.Period{Start: start, End: end})
	if err != nil {
		return quotadomain.Decision{}, err
	}
	decision.Used = used
	decision.Remaining, decision.Exceeded = quotadomain.Decide(limit, used)
	decision.Allowed = !decision.Exceeded

	s.obsMetrics.RecordQuotaDecision(ctx, decision.Plan, decision.Feature, decision.Allowed)
	return decision, nil
}

// resolvePlan degrades to the fallback plan on any lookup failure.
func (s *Service) resolvePlan(ctx context.Context, userID uuid.UUID) *plandomain.Plan {
	subscription, err := s.subscriptions.GetActive(ctx, userID)
	if err != nil {
		s.log.Warn("subscription lookup failed, using fallback plan", zap.Error(err))
		return s.plans.Fallback()
	}
	if subscription == nil {
		return s.plans.Fallback()
	}

	plan, err := s.plans.Resolve(ctx, subscription.PlanCode)
	if err != nil || plan == nil {
		s.log.Warn("plan lookup failed, using fallback plan",
			zap.String("plan_code", subscription.PlanCode),
			zap.Error(err),
		)
		return s.plans.Fallback()
	}
	return plan
}
