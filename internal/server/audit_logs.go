package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	auditdomain "github.com/lukasai/lukas/internal/audit/domain"
	"github.com/lukasai/lukas/internal/auth"
	obslogger "github.com/lukasai/lukas/internal/observability/logger"
)

// recordAudit writes an audit entry after a successful state change. Audit
// failures are logged and never change the response.
func (s *Server) recordAudit(c *gin.Context, actor auth.Principal, action, targetType, targetID string, userID *uuid.UUID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(c.Request.Context(), actor, auditdomain.Entry{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		UserID:     userID,
		Metadata:   metadata,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		obslogger.FromContext(c.Request.Context()).Warn("audit record failed",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if s.auditSvc == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var query struct {
		Action     string `form:"action"`
		TargetType string `form:"target_type"`
		TargetID   string `form:"target_id"`
		UserID     string `form:"user_id"`
		StartAt    string `form:"start_at"`
		EndAt      string `form:"end_at"`
		PageToken  string `form:"page_token"`
		PageSize   int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startAt, err := parseOptionalTime(query.StartAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
		return
	}
	endAt, err := parseOptionalTime(query.EndAt, true)
	if err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), principal, auditdomain.ListRequest{
		Action:     strings.TrimSpace(query.Action),
		TargetType: strings.TrimSpace(query.TargetType),
		TargetID:   strings.TrimSpace(query.TargetID),
		UserID:     strings.TrimSpace(query.UserID),
		StartAt:    startAt,
		EndAt:      endAt,
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
