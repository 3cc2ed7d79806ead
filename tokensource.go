package jaasjwt

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
)

const defaultEarlyExpiry = 5 * time.Minute

// TokenMinter is the part of Issuer the cache depends on.
type TokenMinter interface {
	Issue(ctx context.Context, req TokenRequest) (*IssuedToken, error)
}

// TokenSourceCache hands out one reusable oauth2.TokenSource per request identity,
// so a backend embedding the issuer mints again only when the cached token nears expiry.
// Sources whose last token has expired are evicted whenever a new identity is added.
type TokenSourceCache struct {
	mu          sync.RWMutex
	minter      TokenMinter
	earlyExpiry time.Duration
	entries     map[TokenRequest]*cachedSource
}

type cachedSource struct {
	ts  oauth2.TokenSource
	src *issuerTokenSource
}

// NewTokenSourceCache constructs a cache over minter. A non-positive earlyExpiry uses five minutes.
func NewTokenSourceCache(minter TokenMinter, earlyExpiry time.Duration) *TokenSourceCache {
	if earlyExpiry <= 0 {
		earlyExpiry = defaultEarlyExpiry
	}
	return &TokenSourceCache{
		minter:      minter,
		earlyExpiry: earlyExpiry,
		entries:     make(map[TokenRequest]*cachedSource),
	}
}

// TokenSource returns the cached source for req, creating it on first use.
// Cancelling ctx does not break later Token calls on the returned source.
func (c *TokenSourceCache) TokenSource(ctx context.Context, req TokenRequest) oauth2.TokenSource {
	c.mu.RLock()
	entry, ok := c.entries[req]
	c.mu.RUnlock()
	if ok {
		return entry.ts
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok = c.entries[req]; ok {
		return entry.ts
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c.evictExpiredLocked(time.Now())
	src := &issuerTokenSource{ctx: context.WithoutCancel(ctx), minter: c.minter, req: req}
	entry = &cachedSource{ts: oauth2.ReuseTokenSourceWithExpiry(nil, src, c.earlyExpiry), src: src}
	c.entries[req] = entry
	return entry.ts
}

// Len reports the number of cached sources.
func (c *TokenSourceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TokenSourceCache) evictExpiredLocked(now time.Time) {
	for req, entry := range c.entries {
		if exp := entry.src.expiry.Load(); exp != 0 && exp <= now.UnixNano() {
			delete(c.entries, req)
		}
	}
}

// Token is shorthand for TokenSource(ctx, req).Token() returning the raw JWT.
func (c *TokenSourceCache) Token(ctx context.Context, req TokenRequest) (string, error) {
	tok, err := c.TokenSource(ctx, req).Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

type issuerTokenSource struct {
	ctx    context.Context
	minter TokenMinter
	req    TokenRequest
	// expiry of the last minted token in unix nanoseconds, zero before the first mint.
	expiry atomic.Int64
}

func (s *issuerTokenSource) Token() (*oauth2.Token, error) {
	issued, err := s.minter.Issue(s.ctx, s.req)
	if err != nil {
		return nil, err
	}
	s.expiry.Store(issued.ExpiresAt().UnixNano())
	return &oauth2.Token{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		Expiry:      issued.ExpiresAt(),
	}, nil
}
