package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/cache"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/errors"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/response"
)

// RateLimit limits requests per (client IP, route) within a fixed window using the supplied
// store. A nil store falls back to process-local counters. Store failures let the request through.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	if store == nil {
		store = NewMemoryRateStore()
	}

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := cache.Key("ratelimit", c.ClientIP(), c.Request.Method+" "+route)

		count, resetIn, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			_ = c.Error(err)
			c.Next()
			return
		}

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		resetSeconds := int(resetIn.Round(time.Second).Seconds())

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSeconds))

		if count > maxRequests {
			c.Header("Retry-After", strconv.Itoa(max(resetSeconds, 1)))
			response.Abort(c, errors.ErrRateLimit)
			return
		}

		c.Next()
	}
}
