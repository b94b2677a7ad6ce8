package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// serveI18N runs one request through the middleware and reports what the
// downstream handler saw.
func serveI18N(t *testing.T, fallback string, lookup CountryLookup, headers map[string]string) (locale, country string) {
	t.Helper()
	h := I18N(fallback, lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale = LocaleFromContext(r.Context())
		country = CountryFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/styles/extract", nil)
	req.RemoteAddr = "198.51.100.7:5123"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return locale, country
}

func TestI18N(t *testing.T) {
	geo := func(ip string) (string, error) {
		if ip == "198.51.100.7" {
			return "br", nil
		}
		return "", errors.New("unknown ip")
	}
	cases := []struct {
		name        string
		headers     map[string]string
		fallback    string
		lookup      CountryLookup
		wantLocale  string
		wantCountry string
	}{
		{name: "explicit locale header", headers: map[string]string{"X-Locale": "pt-BR", "Accept-Language": "fr"}, wantLocale: "pt", wantCountry: "BR"},
		{name: "accept-language", headers: map[string]string{"Accept-Language": "es-MX,es;q=0.8"}, wantLocale: "es", wantCountry: "MX"},
		{name: "bad x-locale falls through", headers: map[string]string{"X-Locale": "!!", "Accept-Language": "nl"}, wantLocale: "nl"},
		{name: "edge country header", headers: map[string]string{"CF-IPCountry": "jp"}, wantLocale: "ja", wantCountry: "JP"},
		{name: "first country header wins", headers: map[string]string{"X-Country-Code": "de", "CF-IPCountry": "fr"}, wantLocale: "de", wantCountry: "DE"},
		{name: "geoip lookup", lookup: geo, wantLocale: "pt", wantCountry: "BR"},
		{name: "forwarded ip misses lookup", headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, lookup: geo, fallback: "id", wantLocale: "id"},
		{name: "default english", wantLocale: "en"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			locale, country := serveI18N(t, tc.fallback, tc.lookup, tc.headers)
			if locale != tc.wantLocale || country != tc.wantCountry {
				t.Fatalf("got (%q, %q), want (%q, %q)", locale, country, tc.wantLocale, tc.wantCountry)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:443"
	if got := ClientIP(req); got != "192.0.2.10" {
		t.Fatalf("remote addr: got %q", got)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.1 , 10.0.0.2")
	if got := ClientIP(req); got != "203.0.113.1" {
		t.Fatalf("forwarded: got %q", got)
	}
	if got := ClientIP(nil); got != "" {
		t.Fatalf("nil request: got %q", got)
	}
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()
	if LocaleFromContext(ctx) != "en" || CountryFromContext(ctx) != "" {
		t.Fatal("unexpected defaults on empty context")
	}
}
