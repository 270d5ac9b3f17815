package auth

import (
	"errors"
	"net/http"
	"strings"

	"seafood-order-service/internal/models"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// TokenParser verifies a bearer token
type TokenParser interface {
	ParseToken(tokenString string) (models.Principal, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller on the gin context.
func RequireAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		principal, err := parser.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			reason := "unauthorized"
			if errors.Is(err, ErrTokenExpired) {
				reason = "token_expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || !p.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the caller stored by RequireAuth
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}
