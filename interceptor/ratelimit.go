package interceptor

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/advdv/bpipe"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *bpipe.Request) string

// ClientIP keys requests by the first X-Forwarded-For entry, falling back to the remote
// address of the underlying connection.
func ClientIP(r *bpipe.Request) string {
	if fwd := r.Header().Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}

	if std := r.Std(); std != nil {
		if host, _, err := net.SplitHostPort(std.RemoteAddr); err == nil {
			return host
		}
		return std.RemoteAddr
	}

	return ""
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per key. Buckets unused for longer than the idle TTL are
// dropped by a background sweep that starts with the first request.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	key   KeyFunc

	ttl         time.Duration
	sweepPeriod time.Duration
	startSweep  sync.Once
	stopSweep   chan struct{}
	stopOnce    sync.Once
	mu          sync.Mutex
	m           map[string]*limiterEntry
	now         func() time.Time
}

// RateLimitOption configures a [RateLimiter].
type RateLimitOption func(*RateLimiter)

// WithKeyFunc overrides how requests are bucketed. The default is [ClientIP].
func WithKeyFunc(f KeyFunc) RateLimitOption { return func(l *RateLimiter) { l.key = f } }

// WithIdleTTL sets how long an unused bucket is kept.
func WithIdleTTL(d time.Duration) RateLimitOption { return func(l *RateLimiter) { l.ttl = d } }

// NewRateLimiter allows rps requests per second per key with the given burst.
func NewRateLimiter(rps float64, burst int, opts ...RateLimitOption) *RateLimiter {
	l := &RateLimiter{
		rps:         rate.Limit(rps),
		burst:       max(burst, 1),
		key:         ClientIP,
		ttl:         10 * time.Minute,
		sweepPeriod: time.Minute,
		stopSweep:   make(chan struct{}),
		m:           map[string]*limiterEntry{},
		now:         time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Intercept implements [bpipe.Interceptor]. Requests over the limit are answered with 429 and
// a Retry-After header.
func (l *RateLimiter) Intercept(r *bpipe.Request, next bpipe.Next) (*bpipe.Response, error) {
	now := l.now()

	res := l.get(l.key(r), now).ReserveN(now, 1)
	if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
		res.CancelAt(now)

		resp := bpipe.Text(r, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests)+"\n")
		if err := resp.SetHeader("Retry-After", retryAfter(delay)); err != nil {
			return nil, err
		}
		return resp, nil
	}

	return next(nil), nil
}

// Close stops the background sweep.
func (l *RateLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stopSweep) })
}

// Len returns the number of live buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *RateLimiter) get(key string, now time.Time) *rate.Limiter {
	l.startSweep.Do(func() { go l.sweepLoop() })

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.m[key]; ok {
		e.lastSeen = now
		return e.l
	}

	e := &limiterEntry{l: rate.NewLimiter(l.rps, l.burst), lastSeen: now}
	l.m[key] = e
	return e.l
}

func (l *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(l.now())
		case <-l.stopSweep:
			return
		}
	}
}

func (l *RateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-l.ttl)

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.m {
		if e.lastSeen.Before(cutoff) {
			delete(l.m, k)
		}
	}
}

func retryAfter(delay time.Duration) string {
	if delay <= 0 || delay == rate.InfDuration {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(delay.Seconds())))
}
