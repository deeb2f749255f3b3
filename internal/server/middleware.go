package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lukasai/lukas/internal/auth"
	obscontext "github.com/lukasai/lukas/internal/observability/context"
)

const contextPrincipalKey = "principal"

// AuthRequired verifies the bearer token and stores the principal on the
// gin context and the request context used for logging.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.verifier == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.verifier.Verify(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		ctx = obscontext.WithUserID(ctx, principal.UserID.String())
		ctx = obscontext.WithActor(ctx, string(principal.Role), principal.UserID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

func principalFrom(c *gin.Context) (auth.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return auth.Principal{}, false
	}
	principal, ok := value.(auth.Principal)
	if !ok || principal.IsZero() {
		return auth.Principal{}, false
	}
	return principal, true
}

// requirePrincipal aborts with 401 when the auth middleware did not run.
func requirePrincipal(c *gin.Context) (auth.Principal, bool) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return auth.Principal{}, false
	}
	return principal, true
}

// targetUserID returns the user_id query parameter, defaulting to the caller.
// Services decide whether the caller may act on another user.
func targetUserID(c *gin.Context, principal auth.Principal) string {
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		return raw
	}
	return principal.UserID.String()
}

func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// WebhookRateLimit throttles unauthenticated webhook deliveries per client IP.
func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.webhookLimiter.Allow(c.ClientIP()) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
