package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	plandomain "github.com/lukasai/lukas/internal/plan/domain"
)

func (s *Server) ListPlans(c *gin.Context) {
	if _, ok := requirePrincipal(c); !ok {
		return
	}

	plans, err := s.planSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (s *Server) UpsertPlan(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req plandomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Code = strings.TrimSpace(c.Param("code"))

	plan, err := s.planSvc.Upsert(c.Request.Context(), principal, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, principal, "plan.upsert", "plan", plan.Code, nil, map[string]any{
		"price":    plan.Price,
		"currency": plan.Currency,
	})

	c.JSON(http.StatusOK, gin.H{"data": plan})
}
