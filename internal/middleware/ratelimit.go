package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/toolloop/toolloop/internal/models"
)

const (
	rateWindow      = time.Minute
	cleanupInterval = 5 * time.Minute
)

type slidingWindow struct {
	mu       sync.Mutex
	requests []time.Time
}

func (sw *slidingWindow) allow(now time.Time, limit int) (remaining int, ok bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := now.Add(-rateWindow)
	valid := sw.requests[:0]
	for _, t := range sw.requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	sw.requests = valid

	if len(sw.requests) >= limit {
		return 0, false
	}
	sw.requests = append(sw.requests, now)
	return limit - len(sw.requests), true
}

func (sw *slidingWindow) idleSince(cutoff time.Time) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return len(sw.requests) == 0 || sw.requests[len(sw.requests)-1].Before(cutoff)
}

// RateLimiter keeps one sliding window per client key. Idle windows are
// swept on access rather than by a background goroutine.
type RateLimiter struct {
	mu          sync.Mutex
	windows     map[string]*slidingWindow
	limit       int
	lastCleanup time.Time
	now         func() time.Time
}

func NewRateLimiter(limitPerMinute int) *RateLimiter {
	return &RateLimiter{
		windows:     make(map[string]*slidingWindow),
		limit:       limitPerMinute,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow records a request for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) (remaining int, ok bool) {
	now := rl.now()

	rl.mu.Lock()
	if now.Sub(rl.lastCleanup) >= cleanupInterval {
		cutoff := now.Add(-rateWindow)
		for k, sw := range rl.windows {
			if sw.idleSince(cutoff) {
				delete(rl.windows, k)
			}
		}
		rl.lastCleanup = now
	}
	sw, exists := rl.windows[key]
	if !exists {
		sw = &slidingWindow{}
		rl.windows[key] = sw
	}
	rl.mu.Unlock()

	return sw.allow(now, rl.limit)
}

// RateLimit limits each client to limitPerMinute requests. A request that
// presents one of apiKeys (in keyHeader or as a Bearer token) is counted
// against that key; every other request is counted against its remote IP.
func RateLimit(limitPerMinute int, keyHeader string, apiKeys []string) func(http.Handler) http.Handler {
	rl := NewRateLimiter(limitPerMinute)
	limitStr := strconv.Itoa(limitPerMinute)
	keys := keyList(apiKeys)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r.RemoteAddr)
			if presented := presentedKey(r, keyHeader); presented != "" && matchesAny(keys, []byte(presented)) {
				key = "key:" + presented
			}

			remaining, ok := rl.Allow(key)
			w.Header().Set("X-RateLimit-Limit", limitStr)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
				models.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
