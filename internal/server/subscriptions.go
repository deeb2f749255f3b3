package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
)

// GetCurrentSubscription returns a null subscription for users on the fallback plan.
func (s *Server) GetCurrentSubscription(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	sub, err := s.subscriptionSvc.Current(c.Request.Context(), principal, targetUserID(c, principal))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	subs, err := s.subscriptionSvc.ListByUser(c.Request.Context(), principal, targetUserID(c, principal))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subs})
}

func (s *Server) AssignSubscription(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req subscriptiondomain.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := s.subscriptionSvc.Assign(c.Request.Context(), principal, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, principal, "subscription.assign", "subscription", sub.ID.String(), &sub.UserID, map[string]any{
		"plan_code": sub.PlanCode,
	})

	c.JSON(http.StatusCreated, gin.H{"data": sub})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	sub, err := s.subscriptionSvc.Cancel(c.Request.Context(), principal, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, principal, "subscription.cancel", "subscription", sub.ID.String(), &sub.UserID, map[string]any{
		"plan_code": sub.PlanCode,
	})

	c.JSON(http.StatusOK, gin.H{"data": sub})
}
