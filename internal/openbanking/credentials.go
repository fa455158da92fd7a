package openbanking

import (
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

// MinCredentialTTL is the lower bound applied to every cached credential.
const MinCredentialTTL = 60 * time.Second

const (
	credentialKey = "credential"
	lastKey       = "last"
)

// CredentialCache holds the current credential of one provider. It is safe for
// concurrent use; concurrent renewals are last-writer-wins.
type CredentialCache struct {
	cache      *cache.Cache
	defaultTTL time.Duration
	now        func() time.Time
}

// NewCredentialCache returns an empty cache. defaultTTL applies to credentials that
// carry no expiry.
func NewCredentialCache(defaultTTL time.Duration) *CredentialCache {
	if defaultTTL < MinCredentialTTL {
		defaultTTL = MinCredentialTTL
	}
	return &CredentialCache{
		cache:      cache.New(defaultTTL, 10*time.Minute),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the cached credential if it has not expired.
func (c *CredentialCache) Get() (*oauth2.Token, bool) {
	v, ok := c.cache.Get(credentialKey)
	if !ok {
		return nil, false
	}
	return v.(*oauth2.Token), true
}

// Set caches token until its expiry, or for the default TTL when it has none.
func (c *CredentialCache) Set(token *oauth2.Token) {
	if token == nil {
		return
	}
	c.cache.Set(credentialKey, token, c.TTLFor(token))
	c.cache.Set(lastKey, token, cache.NoExpiration)
}

// TTLFor computes how long token stays cached.
func (c *CredentialCache) TTLFor(token *oauth2.Token) time.Duration {
	ttl := c.defaultTTL
	if token != nil && !token.Expiry.IsZero() {
		ttl = token.Expiry.Sub(c.now())
	}
	if ttl < MinCredentialTTL {
		ttl = MinCredentialTTL
	}
	return ttl
}

// Invalidate drops the cached credential. It returns the last credential stored, even
// an expired one, so refresh flows can reuse its refresh token.
func (c *CredentialCache) Invalidate() *oauth2.Token {
	c.cache.Delete(credentialKey)
	return c.Last()
}

// Last returns the most recently stored credential regardless of expiry.
func (c *CredentialCache) Last() *oauth2.Token {
	v, ok := c.cache.Get(lastKey)
	if !ok {
		return nil
	}
	return v.(*oauth2.Token)
}

// TokenWithTTL builds a token expiring ttl from now; ttl <= 0 leaves the expiry unset.
func TokenWithTTL(accessToken, refreshToken string, ttl time.Duration) *oauth2.Token {
	token := &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken}
	if ttl > 0 {
		token.Expiry = time.Now().Add(ttl)
	}
	return token
}
