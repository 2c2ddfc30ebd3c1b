package middleware

import (
	"time"

	rlog "pairlink/pkg/logger"
	"pairlink/pkg/netaddr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestLoggerMiddleware tags each request with an id and logs it on
// completion.
func RequestLoggerMiddleware(logger *rlog.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		ctx := rlog.WithRequestID(c.Request.Context(), requestID)
		ctx = rlog.WithRemoteIP(ctx, netaddr.ClientIP(c.Request.Header, c.Request.RemoteAddr))
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		logger.LogRequest(ctx, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Milliseconds())
	}
}
