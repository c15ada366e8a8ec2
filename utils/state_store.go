package utils

import (
	"context"
	"sync"
	"time"
)

const defaultStateTTL = 10 * time.Minute

var (
	oauthStates   = map[string]time.Time{}
	oauthStatesMu sync.Mutex
)

func stateKey(state string) string {
	return CacheKey("oauth", "state", state)
}

// SaveState stores an OAuth state token for ttl so the callback can verify it.
func SaveState(ctx context.Context, state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		defer cancel()
		if err := rc.Set(ctx, stateKey(state), "1", ttl).Err(); err == nil {
			return
		}
	}
	// single-instance fallback
	oauthStatesMu.Lock()
	oauthStates[state] = time.Now().Add(ttl)
	oauthStatesMu.Unlock()
}

// ConsumeState validates and removes a state token. Each state is accepted once.
func ConsumeState(ctx context.Context, state string) bool {
	if state == "" {
		return false
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		defer cancel()
		if v, err := rc.GetDel(ctx, stateKey(state)).Result(); err == nil && v != "" {
			return true
		}
	}

	oauthStatesMu.Lock()
	expiresAt, ok := oauthStates[state]
	if ok {
		delete(oauthStates, state)
	}
	oauthStatesMu.Unlock()
	return ok && time.Now().Before(expiresAt)
}
