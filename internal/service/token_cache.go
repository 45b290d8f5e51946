package service

import (
	"sync"
	"time"

	"github.com/you/go-globe-planner/internal/providers"
)

const tokenRefreshSkew = 10 * time.Second

// TokenCache holds a single bearer token until shortly before it expires.
type TokenCache struct {
	mu  sync.Mutex
	tok providers.AccessToken
	now func() time.Time
}

func NewTokenCache() *TokenCache {
	return &TokenCache{now: time.Now}
}

func (c *TokenCache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tok.Value != "" && c.now().Before(c.tok.Expiry.Add(-tokenRefreshSkew)) {
		return c.tok.Value, true
	}
	return "", false
}

func (c *TokenCache) Put(tok providers.AccessToken) {
	c.mu.Lock()
	c.tok = tok
	c.mu.Unlock()
}

func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.tok = providers.AccessToken{}
	c.mu.Unlock()
}
