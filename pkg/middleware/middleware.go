package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/autohaul/autohaul-api/internal/auth"
	"github.com/autohaul/autohaul-api/internal/ratelimit"
	"github.com/autohaul/autohaul-api/internal/types"
	"github.com/autohaul/autohaul-api/pkg/response"
)

// Context keys set by JWTAuth
const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// JWTAuth validates the bearer token and injects the principal's id and
// role into the request context
func JWTAuth(service *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearerToken := strings.Split(c.GetHeader("Authorization"), " ")
		if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "bearer") {
			response.Unauthorized(c, "Invalid authorization header")
			c.Abort()
			return
		}

		claims, err := service.ValidateToken(bearerToken[1])
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			response.Unauthorized(c, "Invalid subject claim")
			c.Abort()
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RateLimit enforces the per-principal fixed window. It must run after
// JWTAuth on mutating routes; a request without a principal in context is a
// contract error, not a denial.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := UserID(c)
		if !exists {
			response.InternalError(c, "Missing principal in context")
			c.Abort()
			return
		}

		principal := strconv.FormatUint(uint64(userID), 10)
		if !limiter.CheckAndConsume(c.Request.Context(), principal) {
			response.TooManyRequests(c, "Rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}

// UserID returns the authenticated principal's id from the context
func UserID(c *gin.Context) (uint, bool) {
	val, exists := c.Get(ContextUserID)
	if !exists {
		return 0, false
	}
	id, ok := val.(uint)
	return id, ok
}

// IsAdmin reports whether the authenticated principal has the admin role
func IsAdmin(c *gin.Context) bool {
	role, exists := c.Get(ContextRole)
	return exists && role == types.RoleAdmin
}
