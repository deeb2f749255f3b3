package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	auditdomain "github.com/lukasai/lukas/internal/audit/domain"
	"github.com/lukasai/lukas/internal/audit/masking"
	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	obscontext "github.com/lukasai/lukas/internal/observability/context"
	"github.com/lukasai/lukas/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Authz authorization.Service
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	authz authorization.Service
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		authz: p.Authz,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, actor auth.Principal, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	payload := masking.MaskJSON(entry.Metadata)
	if payload == nil {
		payload = map[string]any{}
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	actorType, actorID := resolveActor(actor)
	log := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  string(actorType),
		ActorID:    actorID,
		UserID:     entry.UserID,
		Action:     action,
		TargetType: targetType,
		TargetID:   normalize(entry.TargetID),
		Metadata:   datatypes.JSONMap(payload),
		IPAddress:  normalize(entry.IPAddress),
		UserAgent:  normalize(entry.UserAgent),
		CreatedAt:  s.clock.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &log); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, actor auth.Principal, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectAudit, authorization.ActionRead); err != nil {
		return auditdomain.ListResponse{}, err
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidTimeRange
	}

	filter := auditdomain.ListFilter{
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Limit:      pagination.Pagination{PageSize: req.PageSize}.Limit(),
	}
	if raw := strings.TrimSpace(req.UserID); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidUser
		}
		filter.UserID = &userID
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		beforeID, err := snowflake.ParseString(cursor.ID)
		if err != nil || beforeID == 0 {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		filter.BeforeID = beforeID
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	page, pageInfo := pagination.BuildCursorPageInfo(items, filter.Limit, func(item *auditdomain.AuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})

	logs := make([]auditdomain.AuditLog, 0, len(page))
	for _, item := range page {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return auditdomain.ListResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}

func resolveActor(actor auth.Principal) (auditdomain.ActorType, *string) {
	var actorType auditdomain.ActorType
	switch actor.Role {
	case auth.RoleAdmin:
		actorType = auditdomain.ActorTypeAdmin
	case auth.RoleService:
		actorType = auditdomain.ActorTypeService
	case auth.RoleUser:
		actorType = auditdomain.ActorTypeUser
	default:
		actorType = auditdomain.ActorTypeSystem
	}
	if actor.UserID == uuid.Nil {
		if actorType == auditdomain.ActorTypeService {
			actorType = auditdomain.ActorTypeSystem
		}
		return actorType, nil
	}
	id := actor.UserID.String()
	return actorType, &id
}

func normalize(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
