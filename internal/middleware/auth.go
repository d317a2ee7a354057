package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/errcode"
	"github.com/xxxsen/mtodo/internal/pkg/response"
)

const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "role"
	ContextUserKey   = "user"

	SessionCookieName = "token"
)

type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*model.User, error)
}

// Auth accepts a session from the "token" cookie, falling back to an
// Authorization bearer header.
func Auth(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := sessionToken(c)
		if raw == "" {
			response.Error(c, http.StatusUnauthorized, "unauthorized, please login", errcode.Unauthorized)
			c.Abort()
			return
		}
		user, err := resolver.ResolveSession(c.Request.Context(), raw)
		if err != nil {
			if !appErr.IsUnauthorized(err) {
				logutil.GetLogger(c.Request.Context()).Error("resolve session failed", zap.Error(err))
				response.Error(c, http.StatusInternalServerError, "internal error", errcode.Internal)
				c.Abort()
				return
			}
			response.Error(c, http.StatusUnauthorized, "invalid or expired session", errcode.Unauthorized)
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextRoleKey, user.Role)
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRoleKey) != model.RoleAdmin {
			response.Error(c, http.StatusForbidden, "access denied, admin only", errcode.Forbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
