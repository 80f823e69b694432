package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub.app/config"
	"collabhub.app/internal/store"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *store.RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := &config.RedisConfig{
		Addr:         mr.Addr(),
		DB:           0,
		DialTimeout:  5,
		ReadTimeout:  3,
		WriteTimeout: 3,
	}

	s, err := store.NewRedisStore(cfg)
	require.NoError(t, err)
	s.SetCheckInterval(0)
	t.Cleanup(func() { _ = s.Close() })

	return mr, s
}

func performRequest(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequestCache_EssentialRouteHitAndMiss(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, s := setupTestStore(t)

	var handlerCalls int64
	router := gin.New()
	router.GET("/api/notifications/unread-count",
		RequestCache(s, RequestCacheOptions{TTL: 300 * time.Second}),
		func(c *gin.Context) {
			atomic.AddInt64(&handlerCalls, 1)
			c.JSON(http.StatusOK, gin.H{"count": 3})
		})

	headers := map[string]string{"X-User-ID": "u1"}

	// first request: miss, handler runs, response written back to the store
	w := performRequest(router, http.MethodGet, "/api/notifications/unread-count", headers)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache-Hit"))
	assert.JSONEq(t, `{"count":3}`, w.Body.String())
	assert.Equal(t, int64(1), atomic.LoadInt64(&handlerCalls))

	expectedKey := "realtime:GET:/api/notifications/unread-count:u1"
	assert.Eventually(t, func() bool {
		return mr.Exists(expectedKey)
	}, time.Second, 10*time.Millisecond, "response should be cached under %s", expectedKey)

	// second request: served from the store, handler never runs
	w = performRequest(router, http.MethodGet, "/api/notifications/unread-count", headers)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "redis", w.Header().Get("X-Cache-Hit"))
	assert.JSONEq(t, `{"count":3}`, w.Body.String())
	assert.Equal(t, int64(1), atomic.LoadInt64(&handlerCalls))
}

func TestRequestCache_PerUserIsolation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, s := setupTestStore(t)

	router := gin.New()
	router.GET("/api/session/status",
		RequestCache(s, RequestCacheOptions{}),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"user": userID(c)})
		})

	performRequest(router, http.MethodGet, "/api/session/status", map[string]string{"X-User-ID": "u1"})
	performRequest(router, http.MethodGet, "/api/session/status", nil)

	assert.Eventually(t, func() bool {
		return mr.Exists("realtime:GET:/api/session/status:u1") &&
			mr.Exists("realtime:GET:/api/session/status:anonymous")
	}, time.Second, 10*time.Millisecond)
}

func TestRequestCache_ParamRouteMatchesAllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, s := setupTestStore(t)

	router := gin.New()
	router.GET("/api/messages/:roomId/latest",
		RequestCache(s, RequestCacheOptions{}),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"room": c.Param("roomId")})
		})

	w := performRequest(router, http.MethodGet, "/api/messages/room42/latest", map[string]string{"X-User-ID": "u1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache-Strategy"))

	assert.Eventually(t, func() bool {
		return mr.Exists("realtime:GET:/api/messages/room42/latest:u1")
	}, time.Second, 10*time.Millisecond)
}

func TestRequestCache_NonEssentialRouteGetsClientHints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, s := setupTestStore(t)

	var handlerCalls int64
	router := gin.New()
	router.GET("/api/dashboard/stats",
		RequestCache(s, RequestCacheOptions{TTL: 120 * time.Second}),
		func(c *gin.Context) {
			atomic.AddInt64(&handlerCalls, 1)
			c.JSON(http.StatusOK, gin.H{"tasks": 12})
		})

	for i := 0; i < 2; i++ {
		w := performRequest(router, http.MethodGet, "/api/dashboard/stats", map[string]string{"X-User-ID": "u1"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "client-side", w.Header().Get("X-Cache-Strategy"))
		assert.Equal(t, "120", w.Header().Get("X-Cache-TTL"))
		assert.Empty(t, w.Header().Get("X-Cache-Hit"))
	}

	// handler ran both times and nothing was written server-side
	assert.Equal(t, int64(2), atomic.LoadInt64(&handlerCalls))
	assert.Empty(t, mr.Keys())
}

func TestRequestCache_ForceCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, s := setupTestStore(t)

	router := gin.New()
	router.GET("/api/dashboard/stats",
		RequestCache(s, RequestCacheOptions{ForceCache: true}),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"tasks": 12})
		})

	w := performRequest(router, http.MethodGet, "/api/dashboard/stats", map[string]string{"X-User-ID": "u1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache-Strategy"))

	assert.Eventually(t, func() bool {
		return mr.Exists("realtime:GET:/api/dashboard/stats:u1")
	}, time.Second, 10*time.Millisecond)
}

func TestRequestCache_CustomKeyFunc(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, s := setupTestStore(t)

	router := gin.New()
	router.GET("/api/sessions/active",
		RequestCache(s, RequestCacheOptions{
			KeyFunc: func(c *gin.Context) string {
				return "realtime:sessions:" + userID(c)
			},
		}),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"sessions": 1})
		})

	performRequest(router, http.MethodGet, "/api/sessions/active", map[string]string{"X-User-ID": "u7"})

	assert.Eventually(t, func() bool {
		return mr.Exists("realtime:sessions:u7")
	}, time.Second, 10*time.Millisecond)
}

func TestRequestCache_ErrorResponseNotCached(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, s := setupTestStore(t)

	router := gin.New()
	router.GET("/api/session/status",
		RequestCache(s, RequestCacheOptions{}),
		func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
		})

	w := performRequest(router, http.MethodGet, "/api/session/status", map[string]string{"X-User-ID": "u1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, mr.Keys())
}

func TestRequestCache_DegradedStorePassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, s := setupTestStore(t)

	var handlerCalls int64
	router := gin.New()
	router.GET("/api/session/status",
		RequestCache(s, RequestCacheOptions{}),
		func(c *gin.Context) {
			atomic.AddInt64(&handlerCalls, 1)
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})

	mr.Close()

	for i := 0; i < 2; i++ {
		w := performRequest(router, http.MethodGet, "/api/session/status", map[string]string{"X-User-ID": "u1"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Cache-Hit"))
		assert.Empty(t, w.Header().Get("X-Cache-Strategy"))
	}
	assert.Equal(t, int64(2), atomic.LoadInt64(&handlerCalls))
}

func TestRequestCache_IgnoresMutatingMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, s := setupTestStore(t)

	router := gin.New()
	router.POST("/api/session/status",
		RequestCache(s, RequestCacheOptions{}),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})

	w := performRequest(router, http.MethodPost, "/api/session/status", map[string]string{"X-User-ID": "u1"})
	assert.Equal(t, http.StatusOK, w.Code)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, mr.Keys())
}
