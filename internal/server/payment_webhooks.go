package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lukasai/lukas/internal/auth"
	paymentdomain "github.com/lukasai/lukas/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

// HandlePaymentWebhook acknowledges duplicates and ignored events with 200 so
// providers stop retrying them.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.paymentSvc.HandleWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if result.Status == paymentdomain.WebhookStatusProcessed {
		s.recordAudit(c, auth.System(), "payment.webhook", "subscription", result.SubscriptionID, nil, map[string]any{
			"provider": provider,
			"event_id": result.EventID,
		})
	}

	c.JSON(http.StatusOK, result)
}
