package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	aggregatedomain "github.com/lukasai/lukas/internal/aggregate/domain"
	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
	"github.com/lukasai/lukas/pkg/rls"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Authz authorization.Service
	Repo  aggregatedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	authz authorization.Service
	repo  aggregatedomain.Repository
}

func NewService(p ServiceParam) aggregatedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("aggregate.service"),
		authz: p.Authz,
		repo:  p.Repo,
	}
}

func (s *Service) Aggregate(ctx context.Context, actor auth.Principal, req aggregatedomain.AggregateRequest) (aggregatedomain.Aggregate, error) {
	userID := actor.UserID
	if raw := strings.TrimSpace(req.UserID); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return aggregatedomain.Aggregate{}, aggregatedomain.ErrInvalidUser
		}
		userID = parsed
	}
	if userID == uuid.Nil {
		return aggregatedomain.Aggregate{}, aggregatedomain.ErrInvalidUser
	}

	feature, err := normalizeFeature(req.Feature)
	if err != nil {
		return aggregatedomain.Aggregate{}, err
	}
	period := aggregatedomain.Period{Start: req.PeriodStart, End: req.PeriodEnd}
	if !period.Valid() {
		return aggregatedomain.Aggregate{}, aggregatedomain.ErrInvalidPeriod
	}

	if err := s.authz.AuthorizeUser(ctx, actor, userID, authorization.ObjectUsage, authorization.ActionRead); err != nil {
		return aggregatedomain.Aggregate{}, err
	}

	totals, err := s.sum(ctx, userID, feature, period.UTC())
	if err != nil {
		return aggregatedomain.Aggregate{}, err
	}
	return toAggregate(userID, period.UTC(), totals), nil
}

func (s *Service) CountInPeriod(ctx context.Context, userID uuid.UUID, feature string, period aggregatedomain.Period) (int64, error) {
	if userID == uuid.Nil {
		return 0, aggregatedomain.ErrInvalidUser
	}
	normalized, err := normalizeFeature(feature)
	if err != nil {
		return 0, err
	}
	if normalized == "" {
		return 0, aggregatedomain.ErrInvalidFeature
	}
	if !period.Valid() {
		return 0, aggregatedomain.ErrInvalidPeriod
	}

	totals, err := s.sum(ctx, userID, normalized, period.UTC())
	if err != nil {
		return 0, err
	}
	// a compensation landing before its original can briefly dip below zero
	if totals.UsageCount < 0 {
		return 0, nil
	}
	return totals.UsageCount, nil
}

func (s *Service) Overall(ctx context.Context, userID uuid.UUID, period aggregatedomain.Period) (aggregatedomain.Aggregate, error) {
	if userID == uuid.Nil {
		return aggregatedomain.Aggregate{}, aggregatedomain.ErrInvalidUser
	}
	if !period.Valid() {
		return aggregatedomain.Aggregate{}, aggregatedomain.ErrInvalidPeriod
	}
	totals, err := s.sum(ctx, userID, "", period.UTC())
	if err != nil {
		return aggregatedomain.Aggregate{}, err
	}
	return toAggregate(userID, period.UTC(), totals), nil
}

func (s *Service) ByFeature(ctx context.Context, userID uuid.UUID, period aggregatedomain.Period) ([]aggregatedomain.Aggregate, error) {
	if userID == uuid.Nil {
		return nil, aggregatedomain.ErrInvalidUser
	}
	if !period.Valid() {
		return nil, aggregatedomain.ErrInvalidPeriod
	}
	period = period.UTC()

	var rows []aggregatedomain.Totals
	err := rls.Transaction(ctx, s.db, userID, func(tx *gorm.DB) error {
		var err error
		rows, err = s.repo.SumByFeature(ctx, tx, aggregatedomain.Filter{UserID: userID, Period: period})
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]aggregatedomain.Aggregate, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAggregate(userID, period, row))
	}
	return out, nil
}

func (s *Service) sum(ctx context.Context, userID uuid.UUID, feature string, period aggregatedomain.Period) (aggregatedomain.Totals, error) {
	var totals aggregatedomain.Totals
	err := rls.Transaction(ctx, s.db, userID, func(tx *gorm.DB) error {
		var err error
		totals, err = s.repo.Sum(ctx, tx, aggregatedomain.Filter{
			UserID:  userID,
			Feature: feature,
			Period:  period,
		})
		return err
	})
	if err != nil {
		s.log.Warn("aggregate query failed",
			zap.String("feature", feature),
			zap.Error(err),
		)
		return aggregatedomain.Totals{}, err
	}
	return totals, nil
}

func normalizeFeature(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	feature, ok := usagedomain.ParseFeature(raw)
	if !ok {
		return "", aggregatedomain.ErrInvalidFeature
	}
	return string(feature), nil
}

func toAggregate(userID uuid.UUID, period aggregatedomain.Period, totals aggregatedomain.Totals) aggregatedomain.Aggregate {
	return aggregatedomain.Aggregate{
		UserID:          userID,
		Feature:         totals.Feature,
		PeriodStart:     period.Start,
		PeriodEnd:       period.End,
		UsageCount:      totals.UsageCount,
		TotalCost:       totals.TotalCost,
		TotalTokens:     totals.TotalTokens,
		AvgResponseTime: totals.AvgResponseTime(),
		SuccessRate:     totals.SuccessRate(),
	}
}
