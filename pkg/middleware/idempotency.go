package middleware

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	mem "reelcraft/pkg/memcache"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the first 2xx response for the same business, route,
// and Idempotency-Key. Requests without the header pass through.
func Idempotency(store mem.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 255 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Idempotency-Key too long"})
			return
		}

		cacheKey := c.GetString("business_id") + "|" + c.Request.Method + " " + c.Request.URL.Path + "|" + key
		if cached, ok := store.Get(cacheKey); ok {
			zerolog.Ctx(c.Request.Context()).Debug().Str("idempotency_key", key).Msg("replaying response")
			c.Header(ReplayedHeader, "true")
			c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
			c.Abort()
			return
		}

		writer := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		if status := writer.Status(); status >= 200 && status < 300 {
			store.Set(cacheKey, mem.CachedResponse{Status: status, Body: writer.body.Bytes()}, ttl)
		}
	}
}
