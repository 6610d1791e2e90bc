package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"eventhub/api/logger"
	"eventhub/api/models"
	"eventhub/api/utils"
)

// Context keys set by AuthRequired.
const (
	CtxUserID    = "user_id"
	CtxUserEmail = "user_email"
	CtxUserRole  = "user_role"
)

const (
	AuthCookie = "jwt_token"
	// ServiceRole marks requests authenticated with the service API key.
	ServiceRole = "system"
)

type TokenValidator interface {
	Validate(tokenString string) (*utils.Claims, error)
}

// AuthRequired accepts a JWT from the jwt_token cookie or an Authorization
// bearer header. A matching X-API-KEY authenticates as the system actor.
func AuthRequired(tokens TokenValidator, serviceAPIKey string, log *logger.Logger) gin.HandlerFunc {
	log = log.With("component", "AuthMiddleware")
	return func(c *gin.Context) {
		if key := c.GetHeader("X-API-KEY"); key != "" && serviceAPIKey != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(serviceAPIKey)) == 1 {
				c.Set(CtxUserID, ServiceRole)
				c.Set(CtxUserRole, ServiceRole)
				c.Next()
				return
			}
			log.Warn("Rejected invalid service API key", "path", c.FullPath(), "ip", c.ClientIP())
			abort(c, http.StatusUnauthorized, "unauthorized", "Unauthorized: invalid API key")
			return
		}

		tokenString, err := c.Cookie(AuthCookie)
		if err != nil || tokenString == "" {
			tokenString = strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		}
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "Unauthorized: No token provided")
			return
		}

		claims, err := tokens.Validate(tokenString)
		if err != nil {
			log.Debug("Invalid JWT", "error", err)
			abort(c, http.StatusUnauthorized, "unauthorized", "Unauthorized: Invalid or expired token")
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUserEmail, claims.Email)
		c.Set(CtxUserRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin must run after AuthRequired.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.GetString(CtxUserRole) {
		case models.RoleAdmin, ServiceRole:
			c.Next()
		default:
			abort(c, http.StatusForbidden, "forbidden", "Admin access required")
		}
	}
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}
