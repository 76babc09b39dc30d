package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/gogotex/docmodel/pkg/metrics"
)

func newLimitedRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	ok := func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) }
	r.GET("/api/:collection", ok)
	r.POST("/api/:collection", ok)
	return r
}

func serve(r http.Handler, method, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w.Code
}

func TestRateLimitMiddleware_AllowsUnderLimit(t *testing.T) {
	before := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))
	r := newLimitedRouter(RateLimitMiddleware(10, 2)) // generous rate

	// two quick writes should pass
	require.Equal(t, http.StatusOK, serve(r, "POST", "/api/posts"))
	require.Equal(t, http.StatusOK, serve(r, "POST", "/api/posts"))

	require.Equal(t, before+2, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory")))
}

func TestRateLimitMiddleware_BlocksWhenExceeded(t *testing.T) {
	before := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory"))
	// very low rate to force rejections
	r := newLimitedRouter(RateLimitMiddleware(0.5, 1))

	require.Equal(t, http.StatusOK, serve(r, "POST", "/api/posts"))
	require.Equal(t, http.StatusTooManyRequests, serve(r, "POST", "/api/posts"))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory")))

	// one token comes back after two seconds at 0.5 rps
	time.Sleep(2100 * time.Millisecond)
	require.Equal(t, http.StatusOK, serve(r, "POST", "/api/posts"))
}

func TestRateLimitMiddleware_ScopesByCollectionAndSkipsReads(t *testing.T) {
	r := newLimitedRouter(RateLimitMiddleware(0.001, 1))

	require.Equal(t, http.StatusOK, serve(r, "POST", "/api/posts"))
	require.Equal(t, http.StatusTooManyRequests, serve(r, "POST", "/api/posts"))
	// another collection has its own bucket
	require.Equal(t, http.StatusOK, serve(r, "POST", "/api/users"))
	// reads are not throttled
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, serve(r, "GET", "/api/posts"))
	}
}
