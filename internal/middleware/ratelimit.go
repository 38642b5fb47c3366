// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/bbigmic/dziennik-pracy/internal/core"
)

type RateLimitConfig struct {
	Limit   redis_rate.Limit
	KeyFunc func(*http.Request) string
	// FailOpen lets requests through when neither Redis nor the in-process
	// fallback can answer.
	FailOpen bool
}

// RateLimiter enforces a GCRA limit in Redis and degrades to a per-process
// token bucket while Redis is unreachable.
type RateLimiter struct {
	redis    *redis_rate.Limiter
	fallback *localLimiter
	cfg      RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	return &RateLimiter{
		redis:    redis_rate.NewLimiter(rdb),
		fallback: &localLimiter{entries: make(map[string]*localEntry)},
		cfg:      cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.cfg.KeyFunc(r)

		res, err := rl.allow(r.Context(), key)
		if err != nil {
			if !rl.cfg.FailOpen {
				core.JSONError(w, core.NewAppError(
					err,
					"service temporarily unavailable",
					http.StatusServiceUnavailable,
					"UNAVAILABLE",
				))
				return
			}
			slog.Warn("rate limiter unavailable, failing open", "error", err, "key", key)
			next.ServeHTTP(w, r)
			return
		}

		writeLimitHeaders(w.Header(), rl.cfg.Limit, res)

		if res.Allowed == 0 {
			retryAfter := max(int(res.RetryAfter.Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			core.JSONError(w, core.NewAppError(
				nil,
				fmt.Sprintf("too many requests, retry in %d seconds", retryAfter),
				http.StatusTooManyRequests,
				"RATE_LIMITED",
			))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (*redis_rate.Result, error) {
	res, err := rl.redis.Allow(ctx, key, rl.cfg.Limit)
	if err == nil {
		return res, nil
	}
	return rl.fallback.allow(key, rl.cfg.Limit, time.Now())
}

func writeLimitHeaders(h http.Header, limit redis_rate.Limit, res *redis_rate.Result) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
}

// ClientIP is the caller address as seen by the last proxy hop.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func KeyByIP(r *http.Request) string {
	return core.RedisKey("ratelimit", "ip", ClientIP(r))
}

// KeyByUserAndEndpoint gives each signed-in user a separate budget per
// route; anonymous callers share one per address.
func KeyByUserAndEndpoint(r *http.Request) string {
	who := "ip:" + ClientIP(r)
	if userID := GetUserID(r.Context()); userID != "" {
		who = "user:" + userID
	}
	return core.RedisKey("ratelimit", who, normalizeEndpoint(r.URL.Path))
}

func normalizeEndpoint(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if looksLikeID(seg) {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

func looksLikeID(seg string) bool {
	if len(seg) == 36 && seg[8] == '-' && seg[13] == '-' && seg[18] == '-' && seg[23] == '-' {
		return true
	}
	_, err := strconv.ParseUint(seg, 10, 64)
	return err == nil
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: rate, Burst: burst, Period: time.Minute}
}

func PerHour(rate, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: rate, Burst: burst, Period: time.Hour}
}

const (
	localEntryTTL   = 10 * time.Minute
	localSweepEvery = 256
)

type localEntry struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

type localLimiter struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	calls   int
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit, now time.Time) (*redis_rate.Result, error) {
	if limit.Period <= 0 || limit.Rate <= 0 {
		return nil, fmt.Errorf("invalid rate limit %v", limit)
	}
	perSecond := float64(limit.Rate) / limit.Period.Seconds()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%localSweepEvery == 0 {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > localEntryTTL {
				delete(l.entries, k)
			}
		}
	}

	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{bucket: rate.NewLimiter(rate.Limit(perSecond), limit.Burst)}
		l.entries[key] = e
	}
	e.lastSeen = now

	interval := time.Duration(float64(time.Second) / perSecond)
	res := &redis_rate.Result{
		Limit:      limit,
		RetryAfter: -1,
		ResetAfter: interval,
	}

	if e.bucket.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	res.Remaining = max(int(e.bucket.TokensAt(now)), 0)

	return res, nil
}
