package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"stylegen/internal/access"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimit allows perMinute requests per caller with a burst of the same
// size. Authenticated callers are keyed by user id so one account cannot
// dodge the limit by switching addresses; everyone else is keyed by IP.
// A non-positive limit disables it.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	lim := &limiterSet{
		cache: cache.New(limiterIdleTTL, limiterIdleTTL),
		every: rate.Every(time.Minute / time.Duration(perMinute)),
		burst: perMinute,
	}
	retryAfter := strconv.Itoa(int((time.Minute/time.Duration(perMinute) + time.Second - 1) / time.Second))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.get(rateKey(r)).Allow() {
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limiterSet struct {
	cache *cache.Cache
	every rate.Limit
	burst int
}

// get returns the limiter for key and refreshes its idle expiry.
func (s *limiterSet) get(key string) *rate.Limiter {
	if v, ok := s.cache.Get(key); ok {
		s.cache.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(s.every, s.burst)
	if s.cache.Add(key, l, cache.DefaultExpiration) != nil {
		// lost a race with another request for the same key
		if v, ok := s.cache.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

func rateKey(r *http.Request) string {
	if p, ok := access.FromContext(r.Context()); ok {
		return "user:" + p.UserID
	}
	return "ip:" + forwardedIP(r)
}

// forwardedIP picks the first parseable X-Forwarded-For entry and falls back
// to the connection's remote host.
func forwardedIP(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(part); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
