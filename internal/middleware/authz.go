package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"teamhub/backend/internal/security"
	"teamhub/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const (
	UserIDKey = "user_id"
	ClaimsKey = "session_claims"
)

// SessionValidator resolves a raw session token into verified claims.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*security.SessionClaims, error)
}

// SessionAuth reads the session from the cookie or, failing that, a Bearer
// Authorization header. The identity of every downstream handler comes
// from the verified claims only.
func SessionAuth(validator SessionValidator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, cookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "a session cookie or Bearer token is required",
			})
			return
		}

		claims, err := validator.ValidateSession(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, services.ErrUnavailable) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error":   "unavailable",
					"message": "session could not be verified, try again later",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "session is invalid or has expired",
			})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func sessionToken(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
			return cookie
		}
	}

	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// CurrentUserID returns the identity set by SessionAuth.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func CurrentClaims(c *gin.Context) (*security.SessionClaims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*security.SessionClaims)
	return claims, ok
}
