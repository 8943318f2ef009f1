package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/akopjandvd/todo-api/internal/constants"
	"github.com/akopjandvd/todo-api/internal/logger"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config is loaded once at startup and passed explicitly. Nothing mutates it afterwards.
type Config struct {
	Port    string
	GinMode string

	DBDriver     string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSQLitePath string

	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	BcryptCost     int

	LoginRateLimit    int
	LoginRateWindow   time.Duration
	RateLimitRedisURL string

	CORSAllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For; empty means the socket address is the client IP.
	TrustedProxies []string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from .env, an optional config file named by CONFIG_FILE,
// and the environment (highest precedence).
func Load() (*Config, error) {
	loadEnvFile(getEnv("ENV_FILE", ".env"))

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Port:    v.GetString("PORT"),
		GinMode: v.GetString("GIN_MODE"),

		DBDriver:     strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:       v.GetString("DB_HOST"),
		DBPort:       v.GetString("DB_PORT"),
		DBUser:       v.GetString("DB_USER"),
		DBPassword:   v.GetString("DB_PASSWORD"),
		DBName:       v.GetString("DB_NAME"),
		DBSQLitePath: v.GetString("DB_SQLITE_PATH"),

		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTIssuer:      v.GetString("JWT_ISSUER"),
		AccessTokenTTL: v.GetDuration("ACCESS_TOKEN_TTL"),
		BcryptCost:     v.GetInt("BCRYPT_COST"),

		LoginRateLimit:    v.GetInt("LOGIN_RATE_LIMIT"),
		LoginRateWindow:   v.GetDuration("LOGIN_RATE_WINDOW"),
		RateLimitRedisURL: v.GetString("RATE_LIMIT_REDIS_URL"),

		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		TrustedProxies:     splitList(v.GetString("TRUSTED_PROXIES")),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")

	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "todo")
	v.SetDefault("DB_PASSWORD", "todo")
	v.SetDefault("DB_NAME", "todo")
	v.SetDefault("DB_SQLITE_PATH", "todo.db")

	v.SetDefault("JWT_SECRET", constants.DevelopmentJWTSecret)
	v.SetDefault("JWT_ISSUER", "todo-api")
	v.SetDefault("ACCESS_TOKEN_TTL", constants.DefaultAccessTokenTTL)
	v.SetDefault("BCRYPT_COST", 12)

	v.SetDefault("LOGIN_RATE_LIMIT", constants.DefaultLoginRateLimit)
	v.SetDefault("LOGIN_RATE_WINDOW", constants.DefaultLoginRateWindow)
	v.SetDefault("RATE_LIMIT_REDIS_URL", "")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("TRUSTED_PROXIES", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", logger.FormatJSON)
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsRelease() {
		if c.JWTSecret == constants.DevelopmentJWTSecret {
			return errors.New("JWT_SECRET must be set in release mode")
		}
		if len(c.JWTSecret) < constants.MinProductionSecretSize {
			return fmt.Errorf("JWT_SECRET must be at least %d bytes in release mode", constants.MinProductionSecretSize)
		}
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_TTL must be positive")
	}
	if c.LoginRateLimit <= 0 {
		return errors.New("LOGIN_RATE_LIMIT must be positive")
	}
	if c.LoginRateWindow <= 0 {
		return errors.New("LOGIN_RATE_WINDOW must be positive")
	}

	switch c.LogFormat {
	case logger.FormatJSON, logger.FormatConsole:
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q (use json or console)", c.LogFormat)
	}

	switch c.DBDriver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (use sqlite, postgres or mysql)", c.DBDriver)
	}

	return nil
}

func loadEnvFile(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	// Existing environment variables win over the file.
	_ = godotenv.Load(path)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
