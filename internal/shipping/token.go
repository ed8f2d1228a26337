package shipping

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// tokenSkew is how long before the provider-reported expiry a token stops being used.
// Short-lived tokens give up at most half their lifetime.
const tokenSkew = 5 * time.Minute

type tokenFetcher func(ctx context.Context) (token string, ttl time.Duration, err error)

// tokenCache holds the carrier bearer token. Concurrent callers that find it expired
// share a single refresh.
type tokenCache struct {
	fetch tokenFetcher
	now   func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

func newTokenCache(fetch tokenFetcher) *tokenCache {
	return &tokenCache{fetch: fetch, now: time.Now}
}

func (c *tokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

func (c *tokenCache) Get(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	ch := c.group.DoChan("token", func() (any, error) {
		if token, ok := c.cached(); ok {
			return token, nil
		}

		// Detached so one caller giving up does not fail the others waiting on it.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		token, ttl, err := c.fetch(fetchCtx)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.token = token
		c.expiresAt = c.now().Add(ttl - min(tokenSkew, ttl/2))
		c.mu.Unlock()

		return token, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate drops the cached token so the next Get refreshes it.
func (c *tokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}
