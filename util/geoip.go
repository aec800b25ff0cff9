package util

import (
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oschwald/geoip2-golang"
	cache "github.com/patrickmn/go-cache"
)

// IPLocation is the resolved place of a client address.
type IPLocation struct {
	City    string
	Country string
}

// Label renders "City/Country", or whichever half is known.
func (l IPLocation) Label() string {
	switch {
	case l.City != "" && l.Country != "":
		return fmt.Sprintf("%s/%s", l.City, l.Country)
	case l.Country != "":
		return l.Country
	default:
		return l.City
	}
}

var (
	geoipMu        sync.RWMutex
	geoipDB        *geoip2.Reader
	geoipCache     *cache.Cache
	geoipCacheHits int64
	geoipCacheMiss int64
)

// InitGeoIP opens the GeoLite2 city database at dbPath (or GEOIP_DB_PATH).
// An empty path leaves lookups disabled.
func InitGeoIP(dbPath string) error {
	if dbPath == "" {
		dbPath = os.Getenv("GEOIP_DB_PATH")
	}
	if dbPath == "" {
		return nil
	}

	r, err := geoip2.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open geoip db: %w", err)
	}
	geoipMu.Lock()
	geoipDB = r
	geoipCache = cache.New(24*time.Hour, time.Hour)
	geoipMu.Unlock()
	return nil
}

// CloseGeoIP closes the GeoIP DB if opened.
func CloseGeoIP() {
	geoipMu.Lock()
	defer geoipMu.Unlock()
	if geoipDB != nil {
		_ = geoipDB.Close()
		geoipDB = nil
	}
}

func isNonRoutable(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// GetIPLocation resolves ip through the cache and then the local database.
// Unknown, private and unparsable addresses resolve to an empty location.
func GetIPLocation(ip string) IPLocation {
	parsed := net.ParseIP(ip)
	if parsed == nil || isNonRoutable(parsed) {
		return IPLocation{}
	}

	geoipMu.RLock()
	db, c := geoipDB, geoipCache
	geoipMu.RUnlock()

	if c != nil {
		if v, ok := c.Get(ip); ok {
			atomic.AddInt64(&geoipCacheHits, 1)
			if loc, ok := v.(IPLocation); ok {
				return loc
			}
		}
	}
	atomic.AddInt64(&geoipCacheMiss, 1)

	if db == nil {
		return IPLocation{}
	}
	rec, err := db.City(parsed)
	if err != nil {
		return IPLocation{}
	}

	loc := IPLocation{City: rec.City.Names["en"], Country: rec.Country.Names["en"]}
	if loc.Country == "" {
		loc.Country = rec.Country.IsoCode
	}
	if c != nil {
		c.Set(ip, loc, cache.DefaultExpiration)
	}
	return loc
}

// GetGeoIPCacheMetrics returns the cache hits and misses and current cache size.
func GetGeoIPCacheMetrics() (hits int64, misses int64, size int) {
	hits = atomic.LoadInt64(&geoipCacheHits)
	misses = atomic.LoadInt64(&geoipCacheMiss)
	geoipMu.RLock()
	defer geoipMu.RUnlock()
	if geoipCache != nil {
		return hits, misses, geoipCache.ItemCount()
	}
	return hits, misses, 0
}
