package constants

import "time"

// Context keys
const (
	ContextKeyUser      = "user"
	ContextKeyUserID    = "user_id"
	ContextKeyTask      = "task"
	ContextKeyRequestID = "request_id"
)

// Headers
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-Id"
	HeaderRetryAfter    = "Retry-After"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	BearerScheme        = "Bearer"
	TokenTypeBearer     = "bearer"
)

// Credential bounds
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes
	MaxPasswordLength = 72
)

// Task bounds
const (
	MaxTaskTitleLength       = 200
	MaxTaskDescriptionLength = 300
	MaxTaskTagsLength        = 255
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Defaults
const (
	DefaultAccessTokenTTL   = 30 * time.Minute
	DefaultLoginRateLimit   = 5
	DefaultLoginRateWindow  = 60 * time.Second
	DefaultJanitorInterval  = 5 * time.Minute
	DefaultShutdownTimeout  = 10 * time.Second
	DevelopmentJWTSecret    = "development-secret-change-me"
	MinProductionSecretSize = 32
)
