package handlers

import (
	"net/http"
	"time"

	"teamhub/backend/internal/services"

	"github.com/gin-gonic/gin"
)

// CookieConfig controls the session cookie written on login.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

type AuthHandler struct {
	authService services.AuthService
	cookie      CookieConfig
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	User      interface{} `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func NewAuthHandler(authService services.AuthService, cookie CookieConfig) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "session"
	}
	return &AuthHandler{authService: authService, cookie: cookie}
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}

// Login authenticates by email and password and sets the session cookie.
// The token is also returned for clients that prefer a Bearer header.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.authService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	h.setSessionCookie(c, session.Token, maxAge)

	c.JSON(http.StatusOK, LoginResponse{
		User:      session.User,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}
