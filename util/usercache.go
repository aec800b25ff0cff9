package util

import (
	"fmt"
	"os"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

var (
	accountCache   *cache.Cache
	accountCacheMu sync.RWMutex
)

// InitAccountCache sets up the userID -> username cache used to label log
// lines. A non-positive ttl falls back to 10 minutes.
func InitAccountCache(ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	accountCacheMu.Lock()
	accountCache = cache.New(ttl, 2*ttl)
	accountCacheMu.Unlock()
}

// InitAccountCacheFromEnv reads ACCOUNT_CACHE_TTL (a Go duration string).
func InitAccountCacheFromEnv() {
	ttl, err := time.ParseDuration(os.Getenv("ACCOUNT_CACHE_TTL"))
	if err != nil {
		ttl = 0
	}
	InitAccountCache(ttl)
}

func cacheKey(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// ForgetAccount drops a cached label, e.g. after the user is deleted or renamed.
func ForgetAccount(userID uint) {
	accountCacheMu.RLock()
	c := accountCache
	accountCacheMu.RUnlock()
	if c != nil {
		c.Delete(cacheKey(userID))
	}
}

// AccountLabel returns the username for userID using the cache, falling back
// to the users table. Unknown users yield "".
func AccountLabel(db *gorm.DB, userID uint) string {
	if userID == 0 {
		return ""
	}
	accountCacheMu.RLock()
	c := accountCache
	accountCacheMu.RUnlock()

	if c != nil {
		if v, ok := c.Get(cacheKey(userID)); ok {
			if name, ok := v.(string); ok {
				return name
			}
		}
	}
	if db == nil {
		return ""
	}
	var u struct{ Username string }
	if err := db.Table("users").Select("username").Where("id = ?", userID).Take(&u).Error; err != nil {
		return ""
	}
	if c != nil && u.Username != "" {
		c.SetDefault(cacheKey(userID), u.Username)
	}
	return u.Username
}
