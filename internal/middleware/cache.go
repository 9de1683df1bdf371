package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/verichain/verichain-api/internal/service"
	"github.com/verichain/verichain-api/pkg/config"
)

const cacheKeyPrefix = "verichain:http:"

type cachedWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *cachedWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Cache serves GET responses from redis. Entries are scoped by path, query
// and requester so applicants never see each other's cached listings.
// Transitions invalidate through CacheInvalidator.
func Cache(client *redis.Client, cfg config.CacheConfig, metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || client == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := cacheKey(c)
		start := time.Now()
		cached, err := client.Get(c.Request.Context(), key).Bytes()
		if err == nil {
			if metrics != nil {
				metrics.RecordCacheOperation(true, time.Since(start))
			}
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			c.Abort()
			return
		}
		if metrics != nil {
			metrics.RecordCacheOperation(false, time.Since(start))
		}

		writer := &cachedWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer
		c.Header("X-Cache", "MISS")
		c.Next()

		if c.Writer.Status() == http.StatusOK && writer.body.Len() > 0 {
			_ = client.Set(c.Request.Context(), key, writer.body.Bytes(), cfg.TTL).Err()
		}
	}
}

// CacheInvalidator drops cached responses when the underlying data changes.
// The lifecycle service calls it after every committed transition so a decided
// application is never served with its pre-decision status.
type CacheInvalidator struct {
	client *redis.Client
}

// NewCacheInvalidator constructs an invalidator. A nil client yields a no-op.
func NewCacheInvalidator(client *redis.Client) *CacheInvalidator {
	return &CacheInvalidator{client: client}
}

// InvalidateApplications deletes every cached listing and detail response.
// Best effort: a failed delete only extends staleness up to the TTL.
func (i *CacheInvalidator) InvalidateApplications(ctx context.Context) {
	if i == nil || i.client == nil {
		return
	}
	iter := i.client.Scan(ctx, 0, cacheKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		_ = i.client.Del(ctx, iter.Val()).Err()
	}
}

func cacheKey(c *gin.Context) string {
	requester := "anon"
	if claims, ok := c.Get(ContextUserKey); ok {
		if user, ok := claims.(interface{ GetSubject() (string, error) }); ok {
			if sub, err := user.GetSubject(); err == nil && sub != "" {
				requester = sub
			}
		}
	}
	return cacheKeyPrefix + requester + ":" + c.Request.URL.RequestURI()
}
