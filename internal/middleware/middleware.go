package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"neuroflash/internal/auth"
	"neuroflash/internal/services"
)

const (
	ContextKeyOwnerID   = "owner_id"
	ContextKeyRequestID = "request_id"
	HeaderRequestID     = "X-Request-ID"
)

// RequestID assigns a correlation id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Logger returns a Gin middleware that logs each request using zap.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", CurrentRequestID(c)),
		)
	}
}

// Auth rejects requests without a valid bearer token.
func Auth(tokens *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := tokens.Parse(auth.NormalizeToken(c.GetHeader("Authorization")))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			return
		}
		c.Set(ContextKeyOwnerID, claims.Subject)
		c.Next()
	}
}

// CurrentOwnerID extracts the authenticated owner id from context.
func CurrentOwnerID(c *gin.Context) string {
	return c.GetString(ContextKeyOwnerID)
}

func CurrentRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}
