package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mem "reelcraft/pkg/memcache"
	"reelcraft/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	verifier, err := utils.NewTokenVerifier("secret")
	require.NoError(t, err)
	bid := uuid.New().String()

	r := gin.New()
	r.GET("/me", JWTAuthMiddleware(verifier), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id")+"|"+c.GetString("business_id")+"|"+c.GetString("Role"))
	})

	good, err := verifier.CreateToken("user-1", bid, "member", time.Hour)
	require.NoError(t, err)
	w := do(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + good})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1|"+bid+"|member", w.Body.String())

	noBusiness, err := verifier.CreateToken("user-1", "", "member", time.Hour)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":     "",
		"not bearer":  "Basic abc",
		"garbage":     "Bearer not-a-jwt",
		"no business": "Bearer " + noBusiness,
	} {
		w := do(r, http.MethodGet, "/me", map[string]string{"Authorization": header})
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestRoleMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) {
		c.Set("Role", c.GetHeader("X-Role"))
	}, RoleMiddleware("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/admin", map[string]string{"X-Role": "admin"}).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", map[string]string{"X-Role": "member"}).Code)
}

func TestTraceIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TraceIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("trace_id"))
	})

	w := do(r, http.MethodGet, "/", map[string]string{TraceIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(TraceIDHeader))

	w = do(r, http.MethodGet, "/", nil)
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)

	w = do(r, http.MethodGet, "/", map[string]string{TraceIDHeader: strings.Repeat("x", 65)})
	assert.NotEqual(t, strings.Repeat("x", 65), w.Body.String())
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	store := mem.NewResponseCache()
	calls := 0

	r := gin.New()
	r.POST("/consume", func(c *gin.Context) {
		c.Set("business_id", c.GetHeader("X-Business"))
	}, Idempotency(store, time.Hour), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"call": calls})
	})

	headers := map[string]string{IdempotencyKeyHeader: "k1", "X-Business": "b1"}
	first := do(r, http.MethodPost, "/consume", headers)
	second := do(r, http.MethodPost, "/consume", headers)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	// keys are scoped per business
	do(r, http.MethodPost, "/consume", map[string]string{IdempotencyKeyHeader: "k1", "X-Business": "b2"})
	assert.Equal(t, 2, calls)

	// no key, no caching
	do(r, http.MethodPost, "/consume", map[string]string{"X-Business": "b1"})
	do(r, http.MethodPost, "/consume", map[string]string{"X-Business": "b1"})
	assert.Equal(t, 4, calls)
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := mem.NewResponseCache()
	calls := 0

	r := gin.New()
	r.POST("/start", Idempotency(store, time.Hour), func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.JSON(http.StatusPaymentRequired, gin.H{"status": "error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	headers := map[string]string{IdempotencyKeyHeader: "k"}
	assert.Equal(t, http.StatusPaymentRequired, do(r, http.MethodPost, "/start", headers).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/start", headers).Code)
	assert.Equal(t, 2, calls)

	w := do(r, http.MethodPost, "/start", map[string]string{IdempotencyKeyHeader: strings.Repeat("k", 256)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 2, calls)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodOptions, "/x", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), IdempotencyKeyHeader)
}
