package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"collabhub.app/internal/store"
)

// Essential real-time routes are the only GET endpoints served from the
// server-side cache; everything else is routed to the client tier via
// caching-hint headers. Path parameters match as wildcards.
var essentialRoutes = []string{
	"GET /api/notifications/unread-count",
	"GET /api/users/online-status",
	"GET /api/messages/:roomId/latest",
	"GET /api/session/status",
	"GET /api/sessions/active",
}

const defaultRequestTTL = 300 * time.Second

// RequestCacheOptions configures the request cache middleware.
type RequestCacheOptions struct {
	// TTL for cached responses; defaults to 300s.
	TTL time.Duration
	// KeyFunc overrides the default cache key derivation.
	KeyFunc func(c *gin.Context) string
	// ForceCache caches the route even when it is not on the essential
	// real-time allow-list.
	ForceCache bool
}

// RequestCache serves eligible GET responses from the store and writes
// handler responses back on a miss. The store write happens off the request
// path; its failure is logged and never surfaced to the client.
func RequestCache(s *store.RedisStore, opts RequestCacheOptions) gin.HandlerFunc {
	if opts.TTL <= 0 {
		opts.TTL = defaultRequestTTL
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		if !s.IsAvailable(ctx) {
			c.Next()
			return
		}

		if !opts.ForceCache && !isEssentialRoute(c.Request.Method, c.Request.URL.Path) {
			c.Header("X-Cache-Strategy", "client-side")
			c.Header("X-Cache-TTL", strconv.Itoa(int(opts.TTL.Seconds())))
			c.Next()
			return
		}

		key := cacheKey(c, opts.KeyFunc)

		if data, ok := s.GetRaw(ctx, key); ok {
			c.Header("X-Cache-Hit", "redis")
			c.Data(http.StatusOK, "application/json; charset=utf-8", data)
			c.Abort()
			return
		}

		writer := newBodyCaptureWriter(c.Writer)
		c.Writer = writer

		c.Next()

		status := writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices || writer.body.Len() == 0 {
			return
		}

		payload := make([]byte, writer.body.Len())
		copy(payload, writer.body.Bytes())

		// fire the write without delaying the already-sent response
		go func() {
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if !s.SetRaw(writeCtx, key, payload, opts.TTL) {
				slog.Debug("Request cache write failed", "key", key)
			}
		}()
	}
}

// cacheKey computes the store key for a request: the caller-supplied
// generator when present, else method + path + acting user, guaranteeing
// per-user isolation of cached responses.
func cacheKey(c *gin.Context, keyFunc func(*gin.Context) string) string {
	if keyFunc != nil {
		return keyFunc(c)
	}
	return fmt.Sprintf("%s%s:%s:%s", store.NamespaceRealtime, c.Request.Method, c.Request.URL.Path, userID(c))
}

// isEssentialRoute matches method + path against the allow-list, treating
// ":param" segments as wildcards.
func isEssentialRoute(method, path string) bool {
	for _, route := range essentialRoutes {
		routeMethod, routePath, found := strings.Cut(route, " ")
		if !found || routeMethod != method {
			continue
		}
		if pathMatches(routePath, path) {
			return true
		}
	}
	return false
}

func pathMatches(pattern, path string) bool {
	patternSegs := strings.Split(strings.Trim(pattern, "/"), "/")
	pathSegs := strings.Split(strings.Trim(path, "/"), "/")
	if len(patternSegs) != len(pathSegs) {
		return false
	}
	for i, seg := range patternSegs {
		if strings.HasPrefix(seg, ":") {
			continue
		}
		if seg != pathSegs[i] {
			return false
		}
	}
	return true
}
