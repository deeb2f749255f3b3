package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lukasai/lukas/internal/auth"
)

//go:embed model.conf
var modelText string

const (
	ObjectUsage        = "usage"
	ObjectQuota        = "quota"
	ObjectReport       = "report"
	ObjectSuggestion   = "suggestion"
	ObjectPlan         = "plan"
	ObjectSubscription = "subscription"
	ObjectAssistant    = "assistant"
	ObjectAudit        = "audit"
)

const (
	ActionRead       = "read"
	ActionRecord     = "record"
	ActionCompensate = "compensate"
	ActionManage     = "manage"
	ActionInvoke     = "invoke"
	ActionCancel     = "cancel"
	ActionAssign     = "assign"

	anySuffix = "_any"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an enforcer whose policies persist in casbin_rule.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds an enforcer with the seeded policies and no storage.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor auth.Principal, object string, action string) error {
	if actor.Role == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(actor.Subject(), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("role", string(actor.Role)),
			zap.String("actor_id", actor.UserID.String()),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) AuthorizeUser(ctx context.Context, actor auth.Principal, userID uuid.UUID, object string, action string) error {
	if !actor.Owns(userID) {
		action += anySuffix
	}
	return s.Authorize(ctx, actor, object, action)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	roleUser := "role:" + string(auth.RoleUser)
	roleService := "role:" + string(auth.RoleService)
	roleAdmin := "role:" + string(auth.RoleAdmin)

	policies := [][]string{
		// own data
		{roleUser, ObjectUsage, ActionRecord},
		{roleUser, ObjectUsage, ActionRead},
		{roleUser, ObjectQuota, ActionRead},
		{roleUser, ObjectReport, ActionRead},
		{roleUser, ObjectSuggestion, ActionRead},
		{roleUser, ObjectSuggestion, ActionManage},
		{roleUser, ObjectPlan, ActionRead},
		{roleUser, ObjectSubscription, ActionRead},
		{roleUser, ObjectSubscription, ActionCancel},
		{roleUser, ObjectAssistant, ActionInvoke},

		// backend services act on behalf of users
		{roleService, ObjectUsage, ActionRecord + anySuffix},
		{roleService, ObjectUsage, ActionRead + anySuffix},
		{roleService, ObjectQuota, ActionRead + anySuffix},
		{roleService, ObjectReport, ActionRead + anySuffix},
		{roleService, ObjectSuggestion, ActionManage + anySuffix},
		{roleService, ObjectSuggestion, ActionRead + anySuffix},
		{roleService, ObjectSubscription, ActionRead + anySuffix},
		{roleService, ObjectSubscription, ActionManage},
		{roleService, ObjectAssistant, ActionInvoke + anySuffix},

		{roleAdmin, ObjectUsage, ActionCompensate},
		{roleAdmin, ObjectUsage, ActionCompensate + anySuffix},
		{roleAdmin, ObjectPlan, ActionManage},
		{roleAdmin, ObjectSubscription, ActionAssign},
		{roleAdmin, ObjectSubscription, ActionCancel + anySuffix},
		{roleAdmin, ObjectAudit, ActionRead},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	groupings := [][]string{
		{roleService, roleUser},
		{roleAdmin, roleService},
	}
	for _, g := range groupings {
		if _, err := enforcer.AddGroupingPolicy(g); err != nil {
			return err
		}
	}
	return nil
}
