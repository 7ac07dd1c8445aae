package http

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// RateLimit enforces a sliding-window limit per client address. The store is
// injected so tests can substitute their own counters. Store failures fail
// open: a broken limiter must not take the endpoint down with it.
func RateLimit(store repository.RateLimitStore, limit int, window time.Duration, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if store == nil || limit <= 0 || window <= 0 {
			return c.Next()
		}

		allowed, retryAfter, err := store.Allow(c.UserContext(), c.IP(), limit, window)
		if err != nil {
			logger.Warn("rate limit store unavailable", zap.Error(err))
			return c.Next()
		}
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
			return apperrors.NewRateLimited(seconds)
		}
		return c.Next()
	}
}
