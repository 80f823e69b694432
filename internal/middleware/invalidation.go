package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"collabhub.app/internal/store"
)

// placeholder tokens look like {userId}, {teamId}, {roomId}
var placeholderRegex = regexp.MustCompile(`\{([a-zA-Z][a-zA-Z0-9]*)\}`)

// namespaces eligible for deletion when RealtimeOnly is set
var realtimeNamespaces = []string{
	store.NamespaceOnline,
	store.NamespaceRoom,
	store.NamespaceRate,
	store.NamespaceMessages,
	"notifications:",
	store.NamespaceRealtime,
}

// domain nouns the client-side caches key their categories on, in the order
// they appear in the hint header
var clientCacheDomains = []string{"team", "task", "user", "message", "dashboard"}

// InvalidationPattern is one entry of the invalidation list: either a literal
// glob with placeholder tokens, or a function deriving the pattern from the
// request. Resolve wins when both are set.
type InvalidationPattern struct {
	Literal string
	Resolve func(c *gin.Context) string
}

// InvalidationOptions configures the invalidation middleware.
type InvalidationOptions struct {
	Patterns []InvalidationPattern
	// RealtimeOnly restricts deletion to patterns inside the real-time
	// namespaces.
	RealtimeOnly bool
}

// Invalidation deletes cache entries matching the declared patterns after a
// mutating request succeeds. Patterns are resolved before the handler runs
// (request parameters, session values and the body are all available then)
// so the client-cache hint header can precede the response body; the actual
// deletes happen after a 2xx completion. Invalidation failures are logged
// and never affect the already-sent response.
func Invalidation(s *store.RedisStore, opts InvalidationOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolved := resolvePatterns(c, opts)

		if hints := clientCacheHints(resolved); hints != "" {
			c.Header("X-Invalidate-Client-Cache", hints)
		}

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}

		ctx := c.Request.Context()
		for _, pattern := range resolved {
			if !s.DeletePattern(ctx, pattern) {
				slog.Warn("Cache invalidation failed", "pattern", pattern)
			}
		}
	}
}

// resolvePatterns evaluates every configured pattern against the request and
// applies the real-time namespace filter.
func resolvePatterns(c *gin.Context, opts InvalidationOptions) []string {
	var bodyFields map[string]interface{}
	if hasPlaceholders(opts.Patterns) {
		bodyFields = peekBodyFields(c)
	}

	resolved := make([]string, 0, len(opts.Patterns))
	for _, p := range opts.Patterns {
		var pattern string
		if p.Resolve != nil {
			pattern = p.Resolve(c)
		} else {
			pattern = substitutePlaceholders(c, p.Literal, bodyFields)
		}
		if pattern == "" {
			continue
		}
		if opts.RealtimeOnly && !inRealtimeNamespace(pattern) {
			continue
		}
		resolved = append(resolved, pattern)
	}
	return resolved
}

func hasPlaceholders(patterns []InvalidationPattern) bool {
	for _, p := range patterns {
		if p.Resolve == nil && placeholderRegex.MatchString(p.Literal) {
			return true
		}
	}
	return false
}

// substitutePlaceholders replaces every {token} with a value drawn from the
// session context, route params, query or body. A token with no substitution
// value falls back to a wildcard, widening the invalidation rather than
// leaving stale entries behind.
func substitutePlaceholders(c *gin.Context, literal string, bodyFields map[string]interface{}) string {
	return placeholderRegex.ReplaceAllStringFunc(literal, func(match string) string {
		token := placeholderRegex.FindStringSubmatch(match)[1]

		if v := c.GetString(token); v != "" {
			return v
		}
		if v := c.Param(token); v != "" {
			return v
		}
		if v := c.Query(token); v != "" {
			return v
		}
		if bodyFields != nil {
			if v, ok := bodyFields[token]; ok {
				if s := fmt.Sprintf("%v", v); s != "" {
					return s
				}
			}
		}
		return "*"
	})
}

// peekBodyFields reads the JSON request body for placeholder values and
// restores it so the handler can still bind it.
func peekBodyFields(c *gin.Context) map[string]interface{} {
	if c.Request.Body == nil {
		return nil
	}

	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if len(bodyBytes) == 0 {
		return nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &fields); err != nil {
		return nil
	}
	return fields
}

func inRealtimeNamespace(pattern string) bool {
	for _, ns := range realtimeNamespaces {
		if strings.HasPrefix(pattern, ns) {
			return true
		}
	}
	return false
}

// clientCacheHints derives coarse-grained invalidation hints from the
// resolved patterns so client-side caches can react even when a server-side
// pattern does not name a client cache entry.
func clientCacheHints(patterns []string) string {
	hints := make([]string, 0, len(clientCacheDomains))
	for _, domain := range clientCacheDomains {
		for _, pattern := range patterns {
			if strings.Contains(pattern, domain) {
				hints = append(hints, domain)
				break
			}
		}
	}
	return strings.Join(hints, ",")
}
