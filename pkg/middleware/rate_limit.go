package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/gogotex/docmodel/pkg/metrics"
)

// isWrite reports whether the request modifies documents. Reads are never
// throttled.
func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// limitKey scopes a limit to the collection being written and the client.
func limitKey(c *gin.Context) string {
	coll := c.Param("collection")
	if coll == "" {
		coll = "-"
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return coll + ":" + ip
}

// RateLimitMiddleware returns a Gin middleware enforcing an in-memory
// token bucket per collection and client IP on write requests.
// rps = allowed writes per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	// per-key limiter store
	var limiters sync.Map // map[string]*rate.Limiter
	return func(c *gin.Context) {
		if !isWrite(c.Request.Method) {
			c.Next()
			return
		}
		v, _ := limiters.LoadOrStore(limitKey(c), rate.NewLimiter(rate.Limit(rps), burst))
		if !v.(*rate.Limiter).Allow() {
			// set common rate limit headers (informational)
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
