package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"teamhub/backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// RecoveryWithLog turns a panic into the same 500 envelope handlers use for
// unexpected errors. The request id is picked up when RequestLogger ran
// before the panic.
func RecoveryWithLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			requestID := c.GetString("request_id")
			logger.WithRequest(requestID).Error("panic recovered",
				"panic", fmt.Sprint(rec),
				"method", c.Request.Method,
				"path", c.FullPath(),
				"stack", string(debug.Stack()),
			)
			_ = c.Error(fmt.Errorf("panic: %v", rec))

			if c.Writer.Written() {
				c.Abort()
				return
			}
			if requestID != "" {
				c.Header(RequestIDHeader, requestID)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "an unexpected error occurred",
			})
		}()
		c.Next()
	}
}
