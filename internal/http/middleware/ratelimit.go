package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to a bucket identity.
type KeyFunc func(*gin.Context) string

// KeyBySessionOrIP prefers the session id set by Session and falls back to
// the client IP. Prefixes keep the two namespaces apart.
func KeyBySessionOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if id := SessionID(c); id != "" {
			return "session:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// EdgeLimiter is a process-local token bucket per key. It protects the
// server from bursts; the per-day request quota is enforced by the
// assistant itself.
type EdgeLimiter struct {
	rps   rate.Limit
	burst int
	key   KeyFunc

	mu       sync.Mutex
	buckets  map[string]*bucket
	idleTTL  time.Duration
	lookups  uint64
	gcEvery  uint64
	now      func() time.Time
	exempted map[string]struct{}
}

// NewEdgeLimiter builds a limiter; burst <= 0 becomes 1.
func NewEdgeLimiter(rps float64, burst int, key KeyFunc) *EdgeLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &EdgeLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		key:      key,
		buckets:  make(map[string]*bucket),
		idleTTL:  10 * time.Minute,
		gcEvery:  5000,
		now:      time.Now,
		exempted: make(map[string]struct{}),
	}
}

// Exempt skips limiting for the given route patterns (as returned by
// gin.Context.FullPath).
func (l *EdgeLimiter) Exempt(routes ...string) *EdgeLimiter {
	for _, r := range routes {
		l.exempted[r] = struct{}{}
	}
	return l
}

// bucketFor returns the limiter for key. Idle buckets are evicted every
// gcEvery lookups, before the requested one is touched.
func (l *EdgeLimiter) bucketFor(key string) *rate.Limiter {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lookups++
	if l.lookups >= l.gcEvery {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lookups = 0
	}

	if b, ok := l.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// Handler rejects requests over the limit with 429 and a Retry-After hint
// in whole seconds.
func (l *EdgeLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := l.exempted[c.FullPath()]; ok {
			c.Next()
			return
		}

		r := l.bucketFor(l.key(c)).Reserve()
		if r.OK() && r.Delay() == 0 {
			c.Next()
			return
		}
		retry := 1
		if r.OK() {
			retry = max(1, int(math.Ceil(r.Delay().Seconds())))
			r.Cancel()
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
