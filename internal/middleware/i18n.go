package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeCtxKey struct{}
type countryCtxKey struct{}

// CountryLookup resolves an IP address to an ISO country code.
type CountryLookup func(ip string) (string, error)

// countryHeaders are set by CDNs and load balancers in front of the api.
var countryHeaders = []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}

// I18N records the caller's language as a base subtag ("en", "id", "pt") and,
// when known, their country. Concept writing uses the language.
//
// Language comes from X-Locale, then Accept-Language, then the main language
// of the caller's country, then defaultLocale. Country comes from CDN
// headers, then the region of the language headers, then lookup.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	fallback := baseLanguage(defaultLocale)
	if fallback == "" {
		fallback = "en"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := requestCountry(r, lookup)
			locale := firstNonEmpty(
				baseLanguage(r.Header.Get("X-Locale")),
				baseLanguage(r.Header.Get("Accept-Language")),
				countryLanguage(country),
				fallback,
			)
			ctx := context.WithValue(r.Context(), localeCtxKey{}, locale)
			if country != "" {
				ctx = context.WithValue(ctx, countryCtxKey{}, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(localeCtxKey{}).(string); ok {
		return v
	}
	return "en"
}

func CountryFromContext(ctx context.Context) string {
	v, _ := ctx.Value(countryCtxKey{}).(string)
	return v
}

// ClientIP prefers the first X-Forwarded-For hop over the socket address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func requestCountry(r *http.Request, lookup CountryLookup) string {
	for _, h := range countryHeaders {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return strings.ToUpper(v)
		}
	}
	for _, h := range []string{"X-Locale", "Accept-Language"} {
		if region := explicitRegion(r.Header.Get(h)); region != "" {
			return region
		}
	}
	if lookup == nil {
		return ""
	}
	if ip := ClientIP(r); ip != "" {
		if code, err := lookup(ip); err == nil {
			return strings.ToUpper(code)
		}
	}
	return ""
}

// primaryTag parses a single tag or an Accept-Language list and returns its
// highest-weighted entry.
func primaryTag(header string) (language.Tag, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return language.Und, false
	}
	if !strings.ContainsAny(header, ",;") {
		tag, err := language.Parse(header)
		return tag, err == nil
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return language.Und, false
	}
	return tags[0], true
}

func baseLanguage(header string) string {
	tag, ok := primaryTag(header)
	if !ok {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

func explicitRegion(header string) string {
	tag, ok := primaryTag(header)
	if !ok {
		return ""
	}
	region, conf := tag.Region()
	if conf != language.Exact {
		return ""
	}
	return region.String()
}

// countryLanguage maps a country to its most likely language, e.g. JP to ja.
func countryLanguage(country string) string {
	region, err := language.ParseRegion(country)
	if err != nil {
		return ""
	}
	tag, err := language.Compose(region)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	if base.String() == "und" {
		return ""
	}
	return base.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
