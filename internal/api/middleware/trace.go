package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/shared/id"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// Trace tags every request with an ID, taken from the X-Request-ID header
// when the client sent one, and logs the request once it completes.
func Trace(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		requestID := id.RequestID(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = id.NewRequestID()
		}

		c.Set(string(requestIDKey), requestID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey, requestID))
		c.Header(RequestIDHeader, requestID.String())

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID.String()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			logger.Warn("Request failed", append(fields, zap.Error(c.Errors.Last()))...)
			return
		}
		logger.Debug("Request served", fields...)
	}
}

// RequestID returns the ID assigned by Trace, or "" outside a traced request.
func RequestID(ctx context.Context) id.RequestID {
	if v, ok := ctx.Value(requestIDKey).(id.RequestID); ok {
		return v
	}
	return ""
}
