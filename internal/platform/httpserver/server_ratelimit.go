package httpserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	httptransport "fedsync/contexts/federation/replication-service/transport/http"
	federationv1 "fedsync/contracts/gen/federation/v1"

	"golang.org/x/time/rate"
)

const (
	defaultLimiterCapacity = 4096
	limiterIdleTTL         = 10 * time.Minute
)

// peerLimiter keeps one token bucket per claimed peer domain. The claim is
// checked before signature verification, so unsigned floods are throttled
// per source address instead.
type peerLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	capacity int
	entries  map[string]*limiterEntry
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newPeerLimiter(limit rate.Limit, burst int, capacity int) *peerLimiter {
	return &peerLimiter{
		limit:    limit,
		burst:    burst,
		capacity: capacity,
		entries:  make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

func (l *peerLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.capacity {
			l.evictLocked(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// evictLocked drops idle buckets, or every bucket when none are idle.
func (l *peerLimiter) evictLocked(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.entries, key)
		}
	}
	if len(l.entries) >= l.capacity {
		l.entries = make(map[string]*limiterEntry)
	}
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.ToLower(strings.TrimSpace(r.Header.Get(federationv1.HeaderDomain)))
		if key == "" {
			key = "ip:" + resolveClientIP(r)
		}
		if !s.limiter.Allow(key) {
			s.logger.Warn("federation request rate limited",
				"event", "http_federation_rate_limited",
				"module", moduleName,
				"layer", "platform",
				"limiter_key", key,
			)
			w.Header().Set("Retry-After", "1")
			writeFederationError(w, http.StatusTooManyRequests, httptransport.ErrorResponse{
				Code:      "rate_limited",
				Message:   "too many federation requests",
				Retryable: true,
			})
			return
		}
		next(w, r)
	}
}
