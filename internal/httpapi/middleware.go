package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerRequestID       = "X-Request-ID"
	logEventHTTPRequest   = "http"
	logFieldMethod        = "method"
	logFieldPath          = "path"
	logFieldStatus        = "status"
	logFieldDuration      = "dur"
	logFieldClientIP      = "ip"
	logFieldUserAgent     = "ua"
	logFieldRequestID     = "request_id"
	logFieldRequestOrigin = "origin"
)

// RequestLogger logs each request and echoes the caller's X-Request-ID so browser and
// command-line clients can correlate their own logs. Server errors are logged at warn level.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(context *gin.Context) {
		startedAt := time.Now()
		requestID := context.GetHeader(headerRequestID)
		if requestID != "" {
			context.Header(headerRequestID, requestID)
		}

		context.Next()

		status := context.Writer.Status()
		fields := []zap.Field{
			zap.String(logFieldMethod, context.Request.Method),
			zap.String(logFieldPath, context.Request.URL.Path),
			zap.Int(logFieldStatus, status),
			zap.Duration(logFieldDuration, time.Since(startedAt)),
			zap.String(logFieldClientIP, context.ClientIP()),
			zap.String(logFieldUserAgent, context.Request.UserAgent()),
			zap.String(logFieldRequestID, requestID),
			zap.String(logFieldRequestOrigin, context.GetHeader("Origin")),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn(logEventHTTPRequest, fields...)
			return
		}
		logger.Info(logEventHTTPRequest, fields...)
	}
}
