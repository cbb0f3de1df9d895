package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Event describes one limiter decision.
type Event struct {
	Key     string
	Allowed bool
	Method  string
	Path    string
	At      time.Time
}

// StatsRecorder persists limiter decisions. Recording failures never block a request.
type StatsRecorder interface {
	Record(ctx context.Context, ev Event) error
}

type KeyFunc func(c *gin.Context) string

// SubjectOrIP keys requests by the authenticated subject, falling back to the client IP.
func SubjectOrIP(c *gin.Context) string {
	if sub := c.GetString("subject"); sub != "" {
		return "sub:" + sub
	}
	return "ip:" + c.ClientIP()
}

func Middleware(store *Store, stats StatsRecorder, keyFn KeyFunc) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = SubjectOrIP
	}
	return func(c *gin.Context) {
		key := keyFn(c)
		allowed, wait := store.Allow(key)

		if stats != nil {
			_ = stats.Record(c.Request.Context(), Event{
				Key:     key,
				Allowed: allowed,
				Method:  c.Request.Method,
				Path:    c.FullPath(),
				At:      time.Now(),
			})
		}
		if !allowed {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
