package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"stylegen/internal/access"
)

func TestRateKey(t *testing.T) {
	cases := []struct {
		name      string
		forwarded string
		remote    string
		principal *access.Principal
		want      string
	}{
		{name: "remote host", remote: "198.51.100.10:1234", want: "ip:198.51.100.10"},
		{name: "forwarded first valid", forwarded: "junk, 203.0.113.1 , 198.51.100.2", remote: "198.51.100.10:1234", want: "ip:203.0.113.1"},
		{name: "ipv6 forwarded", forwarded: "2001:db8::1", remote: "[2001:db8::2]:443", want: "ip:2001:db8::1"},
		{name: "ipv6 remote", forwarded: "junk", remote: "[2001:db8::2]:443", want: "ip:2001:db8::2"},
		{name: "remote without port", remote: "203.0.113.1", want: "ip:203.0.113.1"},
		{name: "principal beats ip", remote: "198.51.100.10:1234", principal: &access.Principal{UserID: "u-1"}, want: "user:u-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.principal != nil {
				req = req.WithContext(access.WithPrincipal(req.Context(), *tc.principal))
			}
			if got := rateKey(req); got != tc.want {
				t.Fatalf("rateKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	send := func(remote, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if user != "" {
			req = req.WithContext(access.WithPrincipal(req.Context(), access.Principal{UserID: user}))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	// one user hopping between addresses shares a single bucket
	send("198.51.100.1:1", "alice")
	send("198.51.100.2:1", "alice")
	rec := send("198.51.100.3:1", "alice")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request for alice = %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("Retry-After = %q", got)
	}
	if rec := send("198.51.100.1:1", "bob"); rec.Code != http.StatusNoContent {
		t.Fatalf("bob = %d", rec.Code)
	}
	if rec := send("198.51.100.1:1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("anonymous from alice's address = %d", rec.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(0)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
}
