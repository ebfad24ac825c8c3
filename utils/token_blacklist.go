package utils

import (
	"context"
	"time"
)

const blacklistPrefix = "jwt:blacklist:"

// BlacklistToken revokes a token until its natural expiration. Backed by a
// Redis key with a matching TTL so revocations survive restarts.
func BlacklistToken(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := rc.Set(ctx, blacklistPrefix+token, "1", ttl).Err(); err != nil && Sugar != nil {
		Sugar.Warnf("failed to blacklist token: %v", err)
	}
}

// IsTokenBlacklisted reports whether a token was revoked before expiration.
// On Redis errors it fails open to avoid locking everyone out.
func IsTokenBlacklisted(token string) bool {
	rc := GetRedis()
	if rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	n, err := rc.Exists(ctx, blacklistPrefix+token).Result()
	return err == nil && n > 0
}
