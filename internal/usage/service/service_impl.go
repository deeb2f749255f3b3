package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	obsmetrics "github.com/lukasai/lukas/internal/observability/metrics"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
	"github.com/lukasai/lukas/pkg/db"
	"github.com/lukasai/lukas/pkg/db/pagination"
	"github.com/lukasai/lukas/pkg/rls"
)

// maxClockSkew bounds how far in the future an occurred_at may be.
const maxClockSkew = 5 * time.Minute

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Authz      authorization.Service
	Repo       usagedomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	authz      authorization.Service
	repo       usagedomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("usage.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		authz:      p.Authz,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Record(ctx context.Context, actor auth.Principal, req usagedomain.RecordRequest) (*usagedomain.UsageEvent, error) {
	userID, err := s.resolveUser(actor, req.UserID)
	if err != nil {
		return nil, err
	}

	feature, ok := usagedomain.ParseFeature(req.Feature)
	if !ok {
		return nil, usagedomain.ErrInvalidFeature
	}

	now := s.clock.Now()
	if err := validateRecord(req, now); err != nil {
		return nil, err
	}

	if err := s.authz.AuthorizeUser(ctx, actor, userID, authorization.ObjectUsage, authorization.ActionRecord); err != nil {
		return nil, err
	}

	occurredAt := req.OccurredAt.UTC()
	if req.OccurredAt.IsZero() {
		occurredAt = now
	}
	success := true
	if req.Success != nil {
		success = *req.Success
	}

	event := &usagedomain.UsageEvent{
		ID:             s.genID.Generate(),
		UserID:         userID,
		Feature:        feature,
		Model:          strings.TrimSpace(req.Model),
		Provider:       strings.ToLower(strings.TrimSpace(req.Provider)),
		InputTokens:    req.InputTokens,
		OutputTokens:   req.OutputTokens,
		TokensUsed:     req.InputTokens + req.OutputTokens,
		Cost:           req.Cost,
		ResponseTimeMS: req.ResponseTimeMS,
		Success:        success,
		Units:          1,
		Kind:           usagedomain.KindUsage,
		IdempotencyKey: normalizeIdempotencyKey(req.IdempotencyKey),
		OccurredAt:     occurredAt,
		CreatedAt:      now,
	}
	if req.Metadata != nil {
		event.Metadata = datatypes.JSONMap(req.Metadata)
	}

	var stored *usagedomain.UsageEvent
	err = rls.Transaction(ctx, s.db, userID, func(tx *gorm.DB) error {
		// a retry returns the accepted row as-is
		if event.IdempotencyKey != nil {
			existing, err := s.repo.FindByIdempotencyKey(ctx, tx, userID, *event.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				stored = existing
				return nil
			}
		}

		inserted, err := s.repo.Insert(ctx, tx, event)
		if err != nil {
			return err
		}
		if inserted {
			stored = event
			return nil
		}
		existing, err := s.repo.FindByIdempotencyKey(ctx, tx, userID, *event.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing == nil {
			return errors.New("usage event vanished after idempotent insert")
		}
		stored = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stored == event {
		s.obsMetrics.RecordUsage(ctx, string(feature), string(usagedomain.KindUsage))
		s.log.Debug("usage recorded",
			zap.String("usage_event_id", event.ID.String()),
			zap.String("feature", string(feature)),
			zap.Bool("success", success),
		)
	}
	return stored, nil
}

func (s *Service) Compensate(ctx context.Context, actor auth.Principal, req usagedomain.CompensateRequest) (*usagedomain.UsageEvent, error) {
	eventID, err := parseEventID(req.EventID)
	if err != nil {
		return nil, err
	}

	original, err := s.repo.FindByID(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, usagedomain.ErrUsageEventNotFound
	}
	if err := s.authz.AuthorizeUser(ctx, actor, original.UserID, authorization.ObjectUsage, authorization.ActionCompensate); err != nil {
		return nil, err
	}
	if original.Kind == usagedomain.KindCompensation {
		return nil, usagedomain.ErrCompensationReversal
	}

	now := s.clock.Now()
	metadata := datatypes.JSONMap{
		"compensated_by": actor.UserID.String(),
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		metadata["reason"] = reason
	}
	originalID := original.ID
	compensation := &usagedomain.UsageEvent{
		ID:             s.genID.Generate(),
		UserID:         original.UserID,
		Feature:        original.Feature,
		Model:          original.Model,
		Provider:       original.Provider,
		InputTokens:    -original.InputTokens,
		OutputTokens:   -original.OutputTokens,
		TokensUsed:     -original.TokensUsed,
		Cost:           -original.Cost,
		ResponseTimeMS: 0,
		Success:        original.Success,
		Units:          -original.Units,
		Kind:           usagedomain.KindCompensation,
		CompensatesID:  &originalID,
		Metadata:       metadata,
		// same period as the original so the period total nets out
		OccurredAt: original.OccurredAt,
		CreatedAt:  now,
	}

	err = rls.Transaction(ctx, s.db, original.UserID, func(tx *gorm.DB) error {
		existing, err := s.repo.FindCompensation(ctx, tx, original.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return usagedomain.ErrAlreadyCompensated
		}
		_, err = s.repo.Insert(ctx, tx, compensation)
		return err
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, usagedomain.ErrAlreadyCompensated
		}
		return nil, err
	}

	s.obsMetrics.RecordUsage(ctx, string(original.Feature), string(usagedomain.KindCompensation))
	s.log.Info("usage compensated",
		zap.String("usage_event_id", original.ID.String()),
		zap.String("compensation_id", compensation.ID.String()),
	)
	return compensation, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Principal, id string) (*usagedomain.UsageEvent, error) {
	eventID, err := parseEventID(id)
	if err != nil {
		return nil, err
	}
	event, err := s.repo.FindByID(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, usagedomain.ErrUsageEventNotFound
	}
	if err := s.authz.AuthorizeUser(ctx, actor, event.UserID, authorization.ObjectUsage, authorization.ActionRead); err != nil {
		// other users' events are indistinguishable from missing ones
		if errors.Is(err, authorization.ErrForbidden) {
			return nil, usagedomain.ErrUsageEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *Service) List(ctx context.Context, actor auth.Principal, req usagedomain.ListRequest) (usagedomain.ListResponse, error) {
	userID, err := s.resolveUser(actor, req.UserID)
	if err != nil {
		return usagedomain.ListResponse{}, err
	}
	if err := s.authz.AuthorizeUser(ctx, actor, userID, authorization.ObjectUsage, authorization.ActionRead); err != nil {
		return usagedomain.ListResponse{}, err
	}

	filter := usagedomain.ListFilter{UserID: userID}
	if strings.TrimSpace(req.Feature) != "" {
		feature, ok := usagedomain.ParseFeature(req.Feature)
		if !ok {
			return usagedomain.ListResponse{}, usagedomain.ErrInvalidFeature
		}
		filter.Feature = feature
	}
	if !req.From.IsZero() && !req.To.IsZero() && !req.From.Before(req.To) {
		return usagedomain.ListResponse{}, usagedomain.ErrInvalidPeriod
	}
	filter.From = req.From.UTC()
	filter.To = req.To.UTC()

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return usagedomain.ListResponse{}, usagedomain.ErrInvalidPageToken
		}
		beforeID, err := snowflake.ParseString(cursor.ID)
		if err != nil || beforeID == 0 {
			return usagedomain.ListResponse{}, usagedomain.ErrInvalidPageToken
		}
		filter.BeforeID = beforeID
	}

	limit := pagination.Pagination{PageSize: req.PageSize}.Limit()
	filter.Limit = limit + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return usagedomain.ListResponse{}, err
	}
	return buildUsageListResponse(items, limit), nil
}

func (s *Service) resolveUser(actor auth.Principal, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if actor.UserID == uuid.Nil {
			return uuid.Nil, usagedomain.ErrInvalidUser
		}
		return actor.UserID, nil
	}
	userID, err := uuid.Parse(raw)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, usagedomain.ErrInvalidUser
	}
	return userID, nil
}

func validateRecord(req usagedomain.RecordRequest, now time.Time) error {
	if req.InputTokens < 0 {
		return usagedomain.ErrInvalidInputTokens
	}
	if req.OutputTokens < 0 {
		return usagedomain.ErrInvalidOutputTokens
	}
	if req.TokensUsed != nil && *req.TokensUsed != req.InputTokens+req.OutputTokens {
		return usagedomain.ErrInvalidTokensUsed
	}
	if math.IsNaN(req.Cost) || math.IsInf(req.Cost, 0) || req.Cost < 0 {
		return usagedomain.ErrInvalidCost
	}
	if req.ResponseTimeMS < 0 {
		return usagedomain.ErrInvalidResponseTime
	}
	if !req.OccurredAt.IsZero() && req.OccurredAt.After(now.Add(maxClockSkew)) {
		return usagedomain.ErrInvalidOccurredAt
	}
	if len(req.IdempotencyKey) > 255 {
		return usagedomain.ErrInvalidIdempotencyKey
	}
	return nil
}

func normalizeIdempotencyKey(key string) *string {
	value := strings.TrimSpace(key)
	if value == "" {
		return nil
	}
	return &value
}

func parseEventID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, usagedomain.ErrInvalidEventID
	}
	return id, nil
}

func buildUsageListResponse(items []*usagedomain.UsageEvent, limit int) usagedomain.ListResponse {
	page, pageInfo := pagination.BuildCursorPageInfo(items, limit, func(event *usagedomain.UsageEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: event.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})

	events := make([]usagedomain.UsageEvent, 0, len(page))
	for _, item := range page {
		if item == nil {
			continue
		}
		events = append(events, *item)
	}
	return usagedomain.ListResponse{
		PageInfo:    pageInfo,
		UsageEvents: events,
	}
}
