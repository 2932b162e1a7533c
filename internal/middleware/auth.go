package middleware

import (
	"errors"
	"net/http"
	"strings"

	"vdt-app/internal/models"
	"vdt-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Keys under which Authenticate stores the caller's identity.
const (
	ContextUsername = "username"
	ContextRole     = "role"
)

var (
	ErrMissingToken    = errors.New("no token provided")
	ErrMalformedHeader = errors.New("invalid token format")
)

// TokenVerifier is satisfied by *service.TokenService.
type TokenVerifier interface {
	Verify(token string) (*models.Claims, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMalformedHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMalformedHeader
	}
	return token, nil
}

// Authenticate creates a Gin middleware for JWT authentication. Every
// failure is a 401; the reason is recorded on the context errors.
func Authenticate(tokens TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			_ = c.Error(err)
			message := "No token provided"
			if errors.Is(err, ErrMalformedHeader) {
				message = "Invalid token format"
			}
			abortWithMessage(c, http.StatusUnauthorized, message)
			return
		}

		claims, err := tokens.Verify(tokenString)
		if err != nil {
			_ = c.Error(err)
			if errors.Is(err, service.ErrExpiredToken) {
				abortWithMessage(c, http.StatusUnauthorized, "Token expired")
				return
			}
			logger.Warn("Invalid JWT token", zap.Error(err), zap.String("client_ip", c.ClientIP()))
			abortWithMessage(c, http.StatusUnauthorized, "Failed to authenticate token")
			return
		}

		// Set user claims in context
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

// Authorize admits requests whose authenticated role is in allowed.
func Authorize(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(ContextRole)
		if !ok {
			abortWithMessage(c, http.StatusUnauthorized, "No token provided")
			return
		}
		r, _ := role.(models.Role)
		if !RoleAllowed(r, allowed) {
			abortWithMessage(c, http.StatusForbidden, "Forbidden")
			return
		}
		c.Next()
	}
}

func abortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
