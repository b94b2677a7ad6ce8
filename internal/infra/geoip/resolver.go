// Package geoip maps client IP addresses to ISO country codes using a
// MaxMind GeoLite2/GeoIP2 Country database.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/patrickmn/go-cache"
)

// ErrUnavailable is returned by a nil Resolver.
var ErrUnavailable = errors.New("geoip resolver unavailable")

const (
	answerTTL    = time.Hour
	cachePurge   = 10 * time.Minute
	maxCacheSize = 50_000
)

type countryDB interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

// Resolver remembers answers, misses included, for an hour.
type Resolver struct {
	db      countryDB
	answers *cache.Cache
}

// NewResolver opens the database at path. An empty path means geolocation is
// switched off and yields a nil *Resolver with no error.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open %s: %w", path, err)
	}
	return newResolver(db), nil
}

func newResolver(db countryDB) *Resolver {
	return &Resolver{db: db, answers: cache.New(answerTTL, cachePurge)}
}

// CountryCode returns the upper-case ISO code for ip. Loopback, private and
// other non-routable addresses resolve to "" without touching the database.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil {
		return "", ErrUnavailable
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return "", nil
	}
	key := addr.String()
	if code, ok := r.answers.Get(key); ok {
		return code.(string), nil
	}
	rec, err := r.db.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return "", fmt.Errorf("geoip: lookup %s: %w", key, err)
	}
	var code string
	if rec != nil {
		code = strings.ToUpper(rec.Country.IsoCode)
	}
	if r.answers.ItemCount() >= maxCacheSize {
		r.answers.DeleteExpired()
	}
	r.answers.SetDefault(key, code)
	return code, nil
}

func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	return r.db.Close()
}

// Lookup returns r.CountryCode, or nil for a nil resolver so the request
// middleware skips geolocation entirely.
func Lookup(r *Resolver) func(ip string) (string, error) {
	if r == nil {
		return nil
	}
	return r.CountryCode
}
