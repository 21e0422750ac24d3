package api

import (
	"net/http"

	"notifyhub/internal/middleware"
	"notifyhub/internal/response"
	"notifyhub/internal/services"

	"github.com/gin-gonic/gin"
)

const refreshCookiePath = "/api/auth"

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token for clients that do not use cookies
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// Login issues a session
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}

	middleware.SetCurrentUser(c, session.User)
	h.setSessionCookies(c, session)
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "login successful",
		"user":          session.User,
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(h.cfg.AccessTokenTTL.Seconds()),
	})
}

// Logout revokes the presented tokens and clears the cookies
func (h *Handler) Logout(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.auth.Logout(c.Request.Context(), middleware.AccessToken(c), h.refreshToken(c, req)); err != nil {
		response.FromError(c, err)
		return
	}

	h.clearSessionCookies(c)
	response.MessageJSON(c, "logged out")
}

// Refresh exchanges the refresh token for a new access token
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)

	session, err := h.auth.Refresh(c.Request.Context(), h.refreshToken(c, req))
	if err != nil {
		if services.KindOf(err) == services.KindUnauthorized {
			h.clearSessionCookies(c)
		}
		response.FromError(c, err)
		return
	}

	middleware.SetCurrentUser(c, session.User)
	h.setSessionCookies(c, session)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "token refreshed",
		"user":         session.User,
		"access_token": session.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   int(h.cfg.AccessTokenTTL.Seconds()),
	})
}

// Me returns the authenticated user
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "success",
		"user":    middleware.CurrentUser(c),
	})
}

// ChangePassword changes the password of the authenticated user
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), middleware.CurrentUser(c), req.OldPassword, req.NewPassword); err != nil {
		response.FromError(c, err)
		return
	}
	response.MessageJSON(c, "password changed")
}

func (h *Handler) refreshToken(c *gin.Context, req RefreshRequest) string {
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	token, _ := c.Cookie(middleware.RefreshTokenCookie)
	return token
}

func (h *Handler) setSessionCookies(c *gin.Context, session *services.Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, session.AccessToken,
		int(h.cfg.AccessTokenTTL.Seconds()), "/", "", h.cfg.CookieSecure, true)
	if session.RefreshToken != "" {
		c.SetCookie(middleware.RefreshTokenCookie, session.RefreshToken,
			int(h.cfg.RefreshTokenTTL.Seconds()), refreshCookiePath, "", h.cfg.CookieSecure, true)
	}
}

func (h *Handler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", h.cfg.CookieSecure, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, refreshCookiePath, "", h.cfg.CookieSecure, true)
}
