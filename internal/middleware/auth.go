package middleware

import (
	"net/http"
	"strings"

	"notifyhub/internal/models"
	"notifyhub/internal/response"
	"notifyhub/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	// AccessTokenCookie and RefreshTokenCookie name the session cookies
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	currentUserKey = "current_user"
)

// AccessToken returns the bearer token of the request, falling back to the access cookie
func AccessToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	token, _ := c.Cookie(AccessTokenCookie)
	return token
}

// AuthRequired resolves the principal once and stores it in the context
func AuthRequired(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request.Context(), AccessToken(c))
		if err != nil {
			response.AbortJSON(c, response.StatusOf(err), services.PublicMessage(err))
			return
		}

		SetCurrentUser(c, user)
		c.Next()
	}
}

// SetCurrentUser records user as the principal of the request
func SetCurrentUser(c *gin.Context, user *models.User) {
	c.Set(currentUserKey, user)
}

// CurrentUser returns the authenticated user, nil outside AuthRequired
func CurrentUser(c *gin.Context) *models.User {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}

// AdminRequired must follow AuthRequired
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			response.AbortJSON(c, http.StatusForbidden, "admin privileges required")
			return
		}
		c.Next()
	}
}

// UserManagerRequired admits admins and users allowed to create accounts
func UserManagerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.CanManageUsers() {
			response.AbortJSON(c, http.StatusForbidden, "user management privileges required")
			return
		}
		c.Next()
	}
}
