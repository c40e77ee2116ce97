package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger puts a request-scoped logger carrying the request id on the
// context and logs one line per completed request.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		logger := base.With(zap.String("request_id", requestID))
		c.Set(ContextKeyLogger, logger)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if id := GetUserID(c); id != uuid.Nil {
			fields = append(fields, zap.String("user_id", id.String()))
		}
		if s := GetScope(c); !s.IsZero() {
			fields = append(fields, zap.String("tenant_id", s.TenantID().String()))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("request completed", fields...)
		case status >= 400:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

// LoggerFrom returns the request logger, or a no-op logger outside
// RequestLogger.
func LoggerFrom(c *gin.Context) *zap.Logger {
	val, exists := c.Get(ContextKeyLogger)
	if !exists {
		return zap.NewNop()
	}
	logger, ok := val.(*zap.Logger)
	if !ok {
		return zap.NewNop()
	}
	return logger
}
