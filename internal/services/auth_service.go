package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/akopjandvd/todo-api/internal/auth"
	"github.com/akopjandvd/todo-api/internal/constants"
	"github.com/akopjandvd/todo-api/internal/models"
	"github.com/akopjandvd/todo-api/internal/repository"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidUsername    = errors.New("username must be between 3 and 50 characters")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
)

// dummyPassword is hashed once per service so unknown usernames still pay for a bcrypt compare.
const dummyPassword = "dummy-Password-1!"

// TokenIssuer signs access tokens for a username.
type TokenIssuer interface {
	IssueDefault(subject string) (string, time.Time, error)
}

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo  repository.UserRepository
	hasher    auth.Hasher
	tokens    TokenIssuer
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository, hasher auth.Hasher, tokens TokenIssuer) (*AuthService, error) {
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &AuthService{
		userRepo:  userRepo,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummyHash,
	}, nil
}

// RegisterInput represents the required information to create a new user.
type RegisterInput struct {
	Username string
	Password string
}

// IssuedToken is a signed access token and the expiry embedded in it.
type IssuedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Register creates a new user. Usernames are compared exactly; concurrent
// registrations of one name are decided by the unique index.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if n := utf8.RuneCountInString(input.Username); n < constants.MinUsernameLength || n > constants.MaxUsernameLength {
		return nil, ErrInvalidUsername
	}
	if len(input.Password) > constants.MaxPasswordLength {
		return nil, ErrPasswordTooLong
	}
	if !auth.IsStrongPassword(input.Password) {
		return nil, ErrWeakPassword
	}

	if _, err := s.userRepo.FindByUsername(ctx, input.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Username string
	Password string
}

// Login verifies credentials and issues an access token. Unknown users and
// wrong passwords both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*models.User, *IssuedToken, error) {
	user, err := s.userRepo.FindByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.hasher.Verify(input.Password, s.dummyHash)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

// Refresh issues a fresh token for an already authenticated user. The
// previous token stays valid until it expires.
func (s *AuthService) Refresh(user *models.User) (*IssuedToken, error) {
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*IssuedToken, error) {
	token, expiresAt, err := s.tokens.IssueDefault(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &IssuedToken{
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// ResolveUser finds the user named by a verified token subject.
func (s *AuthService) ResolveUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}
