package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/akopjandvd/todo-api/internal/constants"
	apierrors "github.com/akopjandvd/todo-api/internal/errors"
	"github.com/akopjandvd/todo-api/internal/ratelimit"
)

// LoginRateLimit counts every request against the client IP before the body is
// read. Rejected requests get 429 with Retry-After. A failing counter store
// yields 500 rather than letting the request through.
func LoginRateLimit(limiter ratelimit.Limiter, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Error().Err(err).Str("client_ip", key).Msg("rate limiter unavailable")
			apierrors.InternalError(c, "")
			return
		}

		c.Header(constants.HeaderRateRemaining, strconv.Itoa(res.Remaining))
		if !res.Allowed {
			retryAfter := res.RetryAfter(time.Now())
			log.Warn().
				Str("client_ip", key).
				Dur("retry_after", retryAfter).
				Msg("login rate limit exceeded")
			apierrors.TooManyRequests(c, retryAfter)
			return
		}

		c.Next()
	}
}
