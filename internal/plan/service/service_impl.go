package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/config"
	plandomain "github.com/lukasai/lukas/internal/plan/domain"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
	"github.com/lukasai/lukas/pkg/db"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Authz authorization.Service
	Repo  plandomain.Repository
	Plans *config.PlanConfigHolder
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	authz authorization.Service
	repo  plandomain.Repository
	plans *config.PlanConfigHolder
}

func NewService(p ServiceParam) plandomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("plan.service"),

		genID: p.GenID,
		clock: p.Clock,
		authz: p.Authz,
		repo:  p.Repo,
		plans: p.Plans,
	}
}

func (s *Service) LimitFor(plan *plandomain.Plan, feature string) (*int64, error) {
	parsed, ok := usagedomain.ParseFeature(feature)
	if !ok {
		return nil, plandomain.ErrInvalidFeature
	}
	if plan == nil {
		plan = s.Fallback()
	}
	return plan.Limit(string(parsed)), nil
}

func (s *Service) Resolve(ctx context.Context, code string) (*plandomain.Plan, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return s.Fallback(), nil
	}

	plan, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsActive {
		s.log.Warn("plan unavailable, using fallback",
			zap.String("plan_code", code),
			zap.Bool("found", plan != nil),
		)
		return s.Fallback(), nil
	}
	return plan, nil
}

// Fallback is built from configuration so it survives a database outage.
func (s *Service) Fallback() *plandomain.Plan {
	def := s.plans.Get().FallbackPlan()
	return fromDefinition(def, true)
}

func (s *Service) List(ctx context.Context) ([]*plandomain.Plan, error) {
	plans, err := s.repo.List(ctx, s.db, true)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		// not seeded yet
		cfg := s.plans.Get()
		out := make([]*plandomain.Plan, 0, len(cfg.Plans))
		for _, def := range cfg.Plans {
			out = append(out, fromDefinition(def, true))
		}
		return out, nil
	}
	return plans, nil
}

func (s *Service) Upsert(ctx context.Context, actor auth.Principal, req plandomain.UpsertRequest) (*plandomain.Plan, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectPlan, authorization.ActionManage); err != nil {
		return nil, err
	}

	plan, err := s.buildPlan(req)
	if err != nil {
		return nil, err
	}

	stored, created, err := s.upsert(ctx, plan)
	if err != nil {
		return nil, err
	}
	s.log.Info("plan saved",
		zap.String("plan_code", stored.Code),
		zap.Bool("created", created),
		zap.String("actor_id", actor.UserID.String()),
	)
	return stored, nil
}

func (s *Service) SyncFromConfig(ctx context.Context) error {
	for _, def := range s.plans.Get().Plans {
		if _, _, err := s.upsert(ctx, fromDefinition(def, true)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) upsert(ctx context.Context, plan *plandomain.Plan) (*plandomain.Plan, bool, error) {
	now := s.clock.Now()
	var stored *plandomain.Plan
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByCode(ctx, tx, plan.Code)
		if err != nil {
			return err
		}
		if existing == nil {
			plan.ID = s.genID.Generate()
			plan.CreatedAt = now
			plan.UpdatedAt = now
			if err := s.repo.Create(ctx, tx, plan); err != nil {
				return err
			}
			stored = plan
			created = true
			return nil
		}

		plan.ID = existing.ID
		plan.CreatedAt = existing.CreatedAt
		plan.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, plan); err != nil {
			return err
		}
		stored = plan
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// lost a race with a concurrent create; the row exists now
			existing, findErr := s.repo.FindByCode(ctx, s.db, plan.Code)
			if findErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Service) buildPlan(req plandomain.UpsertRequest) (*plandomain.Plan, error) {
	code := slug.Make(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, plandomain.ErrInvalidCode
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, plandomain.ErrInvalidDisplayName
	}
	if math.IsNaN(req.Price) || math.IsInf(req.Price, 0) || req.Price < 0 {
		return nil, plandomain.ErrInvalidPrice
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return nil, plandomain.ErrInvalidCurrency
	}
	cycle, err := parseBillingCycle(req.BillingCycle)
	if err != nil {
		return nil, err
	}

	limits := plandomain.Limits{}
	for rawFeature, limit := range req.Features {
		feature, ok := usagedomain.ParseFeature(rawFeature)
		if !ok {
			return nil, plandomain.ErrInvalidFeature
		}
		if limit != nil && *limit < 0 {
			return nil, plandomain.ErrInvalidLimit
		}
		limits[string(feature)] = copyLimit(limit)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	return &plandomain.Plan{
		Code:         code,
		DisplayName:  displayName,
		Price:        req.Price,
		Currency:     currency,
		BillingCycle: cycle,
		Features:     datatypes.NewJSONType(limits),
		IsActive:     active,
	}, nil
}

func fromDefinition(def config.PlanDefinition, active bool) *plandomain.Plan {
	limits := plandomain.Limits{}
	for feature, limit := range def.Limits {
		if limit < 0 {
			limits[feature] = nil
			continue
		}
		value := limit
		limits[feature] = &value
	}
	cycle, err := parseBillingCycle(def.BillingCycle)
	if err != nil {
		cycle = plandomain.BillingCycleMonthly
	}
	currency := strings.ToUpper(strings.TrimSpace(def.Currency))
	if currency == "" {
		currency = "USD"
	}
	displayName := strings.TrimSpace(def.DisplayName)
	if displayName == "" {
		displayName = def.Code
	}
	return &plandomain.Plan{
		Code:         slug.Make(def.Code),
		DisplayName:  displayName,
		Price:        def.Price,
		Currency:     currency,
		BillingCycle: cycle,
		Features:     datatypes.NewJSONType(limits),
		IsActive:     active,
	}
}

func parseBillingCycle(raw string) (plandomain.BillingCycle, error) {
	switch plandomain.BillingCycle(strings.ToLower(strings.TrimSpace(raw))) {
	case "", plandomain.BillingCycleMonthly:
		return plandomain.BillingCycleMonthly, nil
	case plandomain.BillingCycleYearly:
		return plandomain.BillingCycleYearly, nil
	default:
		return "", plandomain.ErrInvalidBillingCycle
	}
}

func copyLimit(limit *int64) *int64 {
	if limit == nil {
		return nil
	}
	value := *limit
	return &value
}
