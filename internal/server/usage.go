package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	aggregatedomain "github.com/lukasai/lukas/internal/aggregate/domain"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
)

func (s *Server) RecordUsage(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req usagedomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Feature = strings.TrimSpace(req.Feature)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if key := strings.TrimSpace(c.GetHeader("Idempotency-Key")); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	event, err := s.usageSvc.Record(c.Request.Context(), principal, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": event})
}

func (s *Server) GetUsage(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	event, err := s.usageSvc.Get(c.Request.Context(), principal, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}

func (s *Server) ListUsage(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var query struct {
		Feature   string `form:"feature"`
		From      string `form:"from"`
		To        string `form:"to"`
		PageToken string `form:"page_token"`
		PageSize  int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalPeriodEnd(query.To)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	resp, err := s.usageSvc.List(c.Request.Context(), principal, usagedomain.ListRequest{
		UserID:    targetUserID(c, principal),
		Feature:   strings.TrimSpace(query.Feature),
		From:      timeOrZero(from),
		To:        timeOrZero(to),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) CompensateUsage(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req usagedomain.CompensateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	req.EventID = strings.TrimSpace(c.Param("id"))

	event, err := s.usageSvc.Compensate(c.Request.Context(), principal, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, principal, "usage.compensate", "usage_event", req.EventID, &event.UserID, map[string]any{
		"compensation_id": event.ID.String(),
		"reason":          req.Reason,
	})

	c.JSON(http.StatusCreated, gin.H{"data": event})
}

func (s *Server) AggregateUsage(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	start, end, ok := periodQuery(c)
	if !ok {
		return
	}

	resp, err := s.aggregateSvc.Aggregate(c.Request.Context(), principal, aggregatedomain.AggregateRequest{
		UserID:      targetUserID(c, principal),
		Feature:     strings.TrimSpace(c.Query("feature")),
		PeriodStart: timeOrZero(start),
		PeriodEnd:   timeOrZero(end),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// periodQuery reads period_start and period_end. Date-only values cover the
// whole day; the period end is exclusive so it resolves to the next midnight.
func periodQuery(c *gin.Context) (*time.Time, *time.Time, bool) {
	start, err := parseOptionalTime(c.Query("period_start"), false)
	if err != nil {
		AbortWithError(c, newValidationError("period_start", "invalid_period_start", "invalid period_start"))
		return nil, nil, false
	}
	end, err := parseOptionalPeriodEnd(c.Query("period_end"))
	if err != nil {
		AbortWithError(c, newValidationError("period_end", "invalid_period_end", "invalid period_end"))
		return nil, nil, false
	}
	return start, end, true
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
