package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/akopjandvd/todo-api/internal/auth"
	"github.com/akopjandvd/todo-api/internal/constants"
	apierrors "github.com/akopjandvd/todo-api/internal/errors"
	"github.com/akopjandvd/todo-api/internal/models"
	"github.com/akopjandvd/todo-api/internal/services"
)

// TokenVerifier validates a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserResolver loads the user named by a token subject.
type UserResolver interface {
	ResolveUser(ctx context.Context, username string) (*models.User, error)
}

// RequireAuth authenticates the request from its Authorization header and
// stores the resolved user in the context. Storage failures are reported as
// 500, never as an authentication failure.
func RequireAuth(verifier TokenVerifier, users UserResolver, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(constants.HeaderAuthorization)
		if header == "" {
			apierrors.Unauthorized(c, "Authentication required")
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			apierrors.Unauthorized(c, "Invalid authorization header")
			return
		}

		subject, err := verifier.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				apierrors.Unauthorized(c, "token expired")
				return
			}
			apierrors.Unauthorized(c, "could not validate token")
			return
		}

		user, err := users.ResolveUser(c.Request.Context(), subject)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				apierrors.Unauthorized(c, "user not found")
				return
			}
			log.Error().Err(err).Str("username", subject).Msg("failed to resolve token subject")
			apierrors.InternalError(c, "")
			return
		}

		c.Set(constants.ContextKeyUser, user)
		c.Set(constants.ContextKeyUserID, user.ID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, constants.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// GetCurrentUser retrieves the authenticated user from context
func GetCurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	switch v := userID.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}
