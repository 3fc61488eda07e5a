package webhook

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleAfter  = 10 * time.Minute
)

// RateLimiter throttles webhook senders with one token bucket per sender.
// Teams retries an unanswered outgoing webhook aggressively, so a stuck
// pipeline must not turn into a request storm against the model.
type RateLimiter struct {
	rate  rate.Limit // refill rate in requests per second, 0 = unlimited
	burst int

	mu        sync.Mutex
	senders   map[string]*senderBucket
	lastSweep time.Time
}

type senderBucket struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows rpm requests per minute per sender with the given
// burst. rpm <= 0 disables limiting.
func NewRateLimiter(rpm, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 5
	}
	var r rate.Limit
	if rpm > 0 {
		r = rate.Limit(float64(rpm) / 60.0)
	}
	return &RateLimiter{
		rate:      r,
		burst:     burst,
		senders:   make(map[string]*senderBucket),
		lastSweep: time.Now(),
	}
}

// Allow reports whether a request from the given sender may proceed. Idle
// senders are swept opportunistically so the map cannot grow without bound.
func (rl *RateLimiter) Allow(sender string) bool {
	if rl.rate == 0 {
		return true
	}

	rl.mu.Lock()
	now := time.Now()
	if now.Sub(rl.lastSweep) >= limiterSweepEvery {
		rl.sweepLocked(now)
	}
	b, ok := rl.senders[sender]
	if !ok {
		b = &senderBucket{bucket: rate.NewLimiter(rl.rate, rl.burst)}
		rl.senders[sender] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	if !b.bucket.Allow() {
		slog.Warn("security.rate_limited", "sender", sender)
		return false
	}
	return true
}

// sweepLocked drops senders idle past the eviction window. Caller holds mu.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-limiterIdleAfter)
	for sender, b := range rl.senders {
		if b.lastSeen.Before(cutoff) {
			delete(rl.senders, sender)
		}
	}
	rl.lastSweep = now
}

// senderKey identifies the sender of a webhook request. Teams traffic usually
// arrives through a reverse proxy, so the first X-Forwarded-For hop wins over
// the socket address; the port is dropped either way so one sender does not
// get a fresh bucket per connection.
func senderKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
