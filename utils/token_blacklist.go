package utils

import (
	"context"
	"sync"
	"time"
)

var (
	revoked   = map[string]time.Time{}
	revokedMu sync.RWMutex
)

func revokedKey(tokenID string) string {
	return CacheKey("jwt", "revoked", tokenID)
}

// RevokeToken marks a token id (jti) as logged out until the token would have expired anyway.
func RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if tokenID == "" || ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		defer cancel()
		if err := rc.Set(ctx, revokedKey(tokenID), "1", ttl).Err(); err != nil {
			Sugar.Warnf("token revoke via redis failed, keeping it in memory: %v", err)
		} else {
			return
		}
	}
	revokedMu.Lock()
	revoked[tokenID] = expiresAt
	revokedMu.Unlock()
}

// IsTokenRevoked reports whether a token id was logged out before its natural expiry.
func IsTokenRevoked(ctx context.Context, tokenID string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		defer cancel()
		n, err := rc.Exists(ctx, revokedKey(tokenID)).Result()
		if err == nil && n > 0 {
			return true
		}
		// fall through: the entry may have been kept in memory after a redis error
	}

	revokedMu.RLock()
	expiresAt, ok := revoked[tokenID]
	revokedMu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		revokedMu.Lock()
		delete(revoked, tokenID)
		revokedMu.Unlock()
		return false
	}
	return true
}
