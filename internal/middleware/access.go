package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// RequireSelf only lets a request through when the path parameter names
// the authenticated user. Must run after SessionAuth.
func RequireSelf(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := CurrentUserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "authentication required",
			})
			return
		}

		target, err := uuid.FromString(c.Param(param))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "invalid " + param,
			})
			return
		}

		if target != current {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "you can only access your own resources",
			})
			return
		}
		c.Next()
	}
}
