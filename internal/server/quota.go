package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CheckQuota reports the decision without recording anything.
func (s *Server) CheckQuota(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	decision, err := s.quotaSvc.Check(
		c.Request.Context(),
		principal,
		targetUserID(c, principal),
		strings.TrimSpace(c.Param("feature")),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": decision})
}
