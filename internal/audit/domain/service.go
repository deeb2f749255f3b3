package domain

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/pkg/db/pagination"
	"github.com/lukasai/lukas/pkg/errs"
)

type ListRequest struct {
	Action     string
	TargetType string
	TargetID   string
	UserID     string
	StartAt    *time.Time
	EndAt      *time.Time
	PageToken  string
	PageSize   int
}

type ListResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record never fails the caller's operation; errors are returned for logging.
	Record(ctx context.Context, actor auth.Principal, entry Entry) error
	List(ctx context.Context, actor auth.Principal, req ListRequest) (ListResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

var (
	ErrInvalidAction    = errs.Validation("invalid_action", "action")
	ErrInvalidUser      = errs.Validation("invalid_user", "user_id")
	ErrInvalidPageToken = errs.Validation("invalid_page_token", "page_token")
	ErrInvalidTimeRange = errs.Validation("invalid_time_range", "start_at")
)
