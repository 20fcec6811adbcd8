package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/gateway"
	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/webhook"
)

// SignatureHeader carries the gateway's hex HMAC over the raw body.
const SignatureHeader = "X-Signature"

// RegisterWebhookRoutes registers the gateway webhook endpoint.
func RegisterWebhookRoutes(r *gin.Engine, ingress *webhook.Ingress) {
	r.POST("/webhooks/payments", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}

		err = ingress.Process(c.Request.Context(), body, c.GetHeader(SignatureHeader))
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"status": "received"})
		case errors.Is(err, gateway.ErrNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gateway_not_configured"})
		case errors.Is(err, webhook.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
		case errors.Is(err, webhook.ErrInvalidPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		default:
			// Ingress absorbs downstream failures; anything else landing
			// here is still acknowledged to stop gateway retry storms.
			c.JSON(http.StatusOK, gin.H{"status": "received"})
		}
	})
}
