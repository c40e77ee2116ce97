package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/hsedesk/internal/auth"
)

// Context keys for values stored in gin.Context.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyPrincipal = "principal"
	ContextKeyScope     = "scope"
	ContextKeyLogger    = "logger"
)

// AuthMiddleware validates the bearer token and stores the caller's user id.
// It says nothing about the tenant; RequireTenant resolves that.
//
// Browsers cannot set headers on a websocket handshake, so upgrade requests
// may pass the token as ?token= instead.
func AuthMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or malformed authorization header",
			})
			return
		}

		claims, err := issuer.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		// "Bearer eyJhbG..." -> ["Bearer", "eyJhbG..."]
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if websocket.IsWebSocketUpgrade(c.Request) {
		if t := c.Query("token"); t != "" {
			return t, true
		}
	}
	return "", false
}

// GetUserID returns uuid.Nil when AuthMiddleware did not run.
func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}
