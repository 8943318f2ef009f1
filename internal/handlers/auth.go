package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/akopjandvd/todo-api/internal/constants"
	"github.com/akopjandvd/todo-api/internal/dto"
	apierrors "github.com/akopjandvd/todo-api/internal/errors"
	"github.com/akopjandvd/todo-api/internal/middleware"
	"github.com/akopjandvd/todo-api/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// Register creates a new account.
func (h *AuthHandler) Register(c *gin.Context) {
	type RegisterRequest struct {
		Username string `json:"username" binding:"required,min=3,max=50"`
		Password string `json:"password" binding:"required"`
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	h.log.Info().Uint64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	c.JSON(http.StatusCreated, dto.ToUserDTO(*user))
}

// Token exchanges credentials for an access token. Both JSON and
// application/x-www-form-urlencoded bodies are accepted.
func (h *AuthHandler) Token(c *gin.Context) {
	type TokenRequest struct {
		Username string `json:"username" form:"username" binding:"required"`
		Password string `json:"password" form:"password" binding:"required"`
	}

	var req TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), services.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.log.Warn().Str("username", req.Username).Str("client_ip", c.ClientIP()).Msg("login failed")
		}
		h.respondAuthError(c, err)
		return
	}

	h.log.Info().
		Str("username", user.Username).
		Str("client_ip", c.ClientIP()).
		Time("expires_at", token.ExpiresAt).
		Msg("login succeeded")
	c.JSON(http.StatusOK, toTokenResponse(token, time.Now()))
}

// Refresh issues a new token for the authenticated user.
func (h *AuthHandler) Refresh(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	token, err := h.authService.Refresh(user)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTokenResponse(token, time.Now()))
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// toTokenResponse reports the whole seconds left before the token's exp claim.
func toTokenResponse(token *services.IssuedToken, now time.Time) dto.TokenResponse {
	expiresIn := int64(token.ExpiresAt.Sub(now) / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}
	return dto.TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   constants.TokenTypeBearer,
		ExpiresIn:   expiresIn,
	}
}

func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrWeakPassword):
		apierrors.WeakPassword(c)
	case errors.Is(err, services.ErrUsernameTaken):
		apierrors.UsernameTaken(c)
	case errors.Is(err, services.ErrInvalidUsername),
		errors.Is(err, services.ErrPasswordTooLong):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.InvalidCredentials(c)
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.Unauthorized(c, "user not found")
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("auth request failed")
		apierrors.InternalError(c, "")
	}
}
