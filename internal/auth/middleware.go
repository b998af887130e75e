package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mandor/internal/models"
)

// ContextUserKey is the gin context key holding the authenticated user.
const ContextUserKey = "user"

// UserLookup resolves the user behind a verified token.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
}

// Middleware rejects requests without a valid bearer token and stores the
// authenticated user in the gin context.
func Middleware(tokens *Tokens, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := extractBearerToken(c.GetHeader("Authorization"))
		if msg != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		userID, err := tokens.Verify(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, ErrExpiredToken) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by Middleware.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// extractBearerToken returns the token and an error message (empty if successful).
func extractBearerToken(header string) (string, string) {
	if header == "" {
		return "", "authorization token is required"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "authorization header format must be Bearer {token}"
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}
