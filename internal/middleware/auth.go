// Package middleware provides the gin middleware chain: bearer-token
// authentication, request logging and Prometheus instrumentation.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/splitledger/splitledger/internal/auth"
)

// userIDKey is the gin context key the authenticated user id is stored under.
const userIDKey = "auth_user_id"

// Auth validates the Authorization bearer token and stores the authenticated
// user id in the request context. Requests without a valid token are rejected
// with 401.
func Auth(tokens *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be a bearer token"})
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidToken.Error()})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by Auth, or "" when the
// request is unauthenticated.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
