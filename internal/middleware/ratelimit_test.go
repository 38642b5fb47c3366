// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t,
		"/v1/tasks/{id}",
		normalizeEndpoint("/v1/tasks/3f1c2b9e-8d4a-4f7e-9a51-0c2d7e6b1a44"),
	)
	assert.Equal(t, "/v1/journal/{id}", normalizeEndpoint("/v1/journal/42"))
	assert.Equal(t, "/v1/voice/process", normalizeEndpoint("/v1/voice/process/"))
}

func TestKeyByUserAndEndpoint(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/voice/process", nil)
	r = r.WithContext(context.WithValue(r.Context(), UserIDKey, "u1"))

	assert.Equal(t,
		"dziennik:ratelimit:user:u1:/v1/voice/process",
		KeyByUserAndEndpoint(r),
	)
}

func TestKeyByIPUsesLastForwardedHop(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "1.1.1.1, 10.0.0.7")

	assert.Equal(t, "dziennik:ratelimit:ip:10.0.0.7", KeyByIP(r))
}

func TestRateLimiterFallsBackToLocal(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = rdb.Close() }()

	rl := NewRateLimiter(rdb, RateLimitConfig{Limit: PerHour(2, 2)})
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/voice/process", nil)
		r.RemoteAddr = "192.0.2.10:5555"
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestLocalLimiterRefills(t *testing.T) {
	l := &localLimiter{entries: map[string]*localEntry{}}
	limit := PerMinute(60, 1)
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	res, err := l.allow("k", limit, start)
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Allowed)

	res, _ = l.allow("k", limit, start)
	assert.Equal(t, 0, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	res, _ = l.allow("k", limit, start.Add(time.Second))
	assert.Equal(t, 1, res.Allowed)
}
