package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	assistantdomain "github.com/lukasai/lukas/internal/assistant/domain"
)

func (s *Server) InvokeAssistant(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req assistantdomain.InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Feature = strings.TrimSpace(c.Param("feature"))
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = principal.UserID.String()
	}

	resp, err := s.assistantSvc.Invoke(c.Request.Context(), principal, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
