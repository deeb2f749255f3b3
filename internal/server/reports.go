package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	reportdomain "github.com/lukasai/lukas/internal/report/domain"
)

func (s *Server) summaryRequest(c *gin.Context) (reportdomain.SummaryRequest, bool) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return reportdomain.SummaryRequest{}, false
	}
	start, end, ok := periodQuery(c)
	if !ok {
		return reportdomain.SummaryRequest{}, false
	}
	return reportdomain.SummaryRequest{
		UserID:      targetUserID(c, principal),
		PeriodStart: timeOrZero(start),
		PeriodEnd:   timeOrZero(end),
	}, true
}

func (s *Server) GetSummary(c *gin.Context) {
	req, ok := s.summaryRequest(c)
	if !ok {
		return
	}
	principal, _ := principalFrom(c)

	summary, err := s.reportSvc.Summarize(c.Request.Context(), principal, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) GetSummaryPDF(c *gin.Context) {
	req, ok := s.summaryRequest(c)
	if !ok {
		return
	}
	principal, _ := principalFrom(c)

	doc, err := s.reportSvc.RenderSummaryPDF(c.Request.Context(), principal, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "usage-summary.pdf"))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (s *Server) CreateSuggestion(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req reportdomain.CreateSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = principal.UserID.String()
	}

	suggestion, err := s.reportSvc.CreateSuggestion(c.Request.Context(), principal, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": suggestion})
}

func (s *Server) ListSuggestions(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var query struct {
		Applied   string `form:"applied"`
		PageToken string `form:"page_token"`
		PageSize  int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	applied, err := parseOptionalBool(query.Applied)
	if err != nil {
		AbortWithError(c, newValidationError("applied", "invalid_applied", "invalid applied"))
		return
	}

	resp, err := s.reportSvc.ListSuggestions(c.Request.Context(), principal, reportdomain.ListSuggestionsRequest{
		UserID:    targetUserID(c, principal),
		Applied:   applied,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetSuggestion(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	suggestion, err := s.reportSvc.GetSuggestion(c.Request.Context(), principal, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": suggestion})
}

func (s *Server) UpdateSuggestion(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req reportdomain.UpdateSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	suggestion, err := s.reportSvc.UpdateSuggestion(c.Request.Context(), principal, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": suggestion})
}

func (s *Server) DeleteSuggestion(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := s.reportSvc.DeleteSuggestion(c.Request.Context(), principal, id); err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, principal, "suggestion.delete", "suggestion", id, nil, nil)

	c.Status(http.StatusNoContent)
}

// ApplySuggestion moves a proposed suggestion to applied; a second apply is a conflict.
func (s *Server) ApplySuggestion(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	suggestion, err := s.reportSvc.ApplySuggestion(c.Request.Context(), principal, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, principal, "suggestion.apply", "suggestion", suggestion.ID.String(), &suggestion.UserID, map[string]any{
		"estimated_savings": suggestion.EstimatedSavings,
	})

	c.JSON(http.StatusOK, gin.H{"data": suggestion})
}
