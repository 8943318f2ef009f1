// Package logger builds the process zerolog logger and the adapters that route
// gin and gorm output through it.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"github.com/akopjandvd/todo-api/internal/constants"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config controls level and output format.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// New creates a zerolog logger tagged with the service name.
func New(cfg Config, service string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.ToLower(cfg.Format) == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// GinRequestLogger logs every request once it completes. The level follows the
// response status; health checks are skipped.
func GinRequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		default:
			event = log.Debug()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP())
		if id := c.GetString(constants.ContextKeyRequestID); id != "" {
			event = event.Str("request_id", id)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("request completed")
	}
}

// gormWriter satisfies gorm's logger.Writer on top of zerolog.
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Debug().Str("component", "gorm").Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// NewGormLogger returns a gorm logger that writes through log.
func NewGormLogger(log zerolog.Logger, level gormlogger.LogLevel) gormlogger.Interface {
	return gormlogger.New(gormWriter{log: log}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
