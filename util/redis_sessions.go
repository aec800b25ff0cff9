package util

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ariebrainware/hospital-appointment/config"
	"github.com/redis/go-redis/v9"
)

const removeTokenScript = `
	local removed = redis.call('SREM', KEYS[1], ARGV[1])
	if removed > 0 then
		local count = redis.call('SCARD', KEYS[1])
		if count == 0 then
			redis.call('DEL', KEYS[1])
		end
	end
	return removed
`

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func userSetKey(userID uint) string {
	return fmt.Sprintf("user_sessions:%d", userID)
}

// CacheSession stores token -> "userID:roleID" with the session TTL and
// registers the token in the per-user set. No-op when Redis is disabled.
func CacheSession(ctx context.Context, token string, userID uint, roleID uint32, ttl time.Duration) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	val := fmt.Sprintf("%d:%d", userID, roleID)
	if err := rdb.Set(ctx, sessionKey(token), val, ttl).Err(); err != nil {
		return err
	}
	return AddSessionToUserSet(ctx, userID, token, ttl)
}

// LookupSession resolves a cached token. found is false on a cache miss or
// when Redis is disabled; callers then fall back to the sessions table.
func LookupSession(ctx context.Context, token string) (userID uint, roleID uint32, found bool, err error) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return 0, 0, false, nil
	}
	val, err := rdb.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	uidStr, ridStr, ok := strings.Cut(val, ":")
	if !ok {
		return 0, 0, false, fmt.Errorf("malformed session value %q", val)
	}
	uid, err := strconv.ParseUint(uidStr, 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("malformed session user id: %w", err)
	}
	rid, err := strconv.ParseUint(ridStr, 10, 32)
	if err != nil {
		return 0, 0, false, fmt.Errorf("malformed session role id: %w", err)
	}
	return uint(uid), uint32(rid), true, nil
}

// AddSessionToUserSet adds the session token to the per-user Redis set and
// extends the set expiry to the latest session TTL.
func AddSessionToUserSet(ctx context.Context, userID uint, token string, exp time.Duration) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	key := userSetKey(userID)
	if err := rdb.SAdd(ctx, key, token).Err(); err != nil {
		return err
	}
	return rdb.Expire(ctx, key, exp).Err()
}

// RemoveSession deletes the cached token and drops it from the per-user set,
// deleting the set once it is empty.
func RemoveSession(ctx context.Context, userID uint, token string) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	if err := rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return err
	}
	return rdb.Eval(ctx, removeTokenScript, []string{userSetKey(userID)}, token).Err()
}

// InvalidateUserSessions deletes every cached token of the user along with the set.
func InvalidateUserSessions(ctx context.Context, userID uint) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	key := userSetKey(userID)
	members, err := rdb.SMembers(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, tok := range members {
		_ = rdb.Del(ctx, sessionKey(tok)).Err()
	}
	return rdb.Del(ctx, key).Err()
}
