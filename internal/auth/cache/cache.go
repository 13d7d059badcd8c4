// Package cache holds the process-local token fingerprint cache that keeps
// the hot refresh path off the database. It is an optimization only: state
// is lost on restart by design and the persisted store always wins.
package cache

import (
	"sync"
	"time"
)

// DefaultSlidingWindow keeps actively refreshed sessions warm without
// letting an entry outlive its token.
const DefaultSlidingWindow = 24 * time.Hour

const janitorInterval = time.Minute

type key struct {
	tokenType string
	userID    string
}

type entry struct {
	value    string
	absolute time.Time // never extended
	expires  time.Time // sliding deadline, refreshed on access
}

// TokenCache is a thread-safe, time-expiring (tokenType, userID) → value
// map with absolute expiration plus a sliding window.
type TokenCache struct {
	mu      sync.Mutex
	entries map[key]entry
	sliding time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(sliding time.Duration) *TokenCache {
	if sliding <= 0 {
		sliding = DefaultSlidingWindow
	}

	c := &TokenCache{
		entries: make(map[key]entry),
		sliding: sliding,
		stopCh:  make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns the cached value, refreshing the sliding window on hit.
func (c *TokenCache) Get(tokenType, userID string) (string, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{tokenType: tokenType, userID: userID}
	e, ok := c.entries[k]
	if !ok || now.After(e.expires) || now.After(e.absolute) {
		delete(c.entries, k)
		return "", false
	}

	e.expires = slide(now, c.sliding, e.absolute)
	c.entries[k] = e
	return e.value, true
}

// Set stores a value that auto-evicts at absoluteExpiry, or earlier if it
// goes untouched for the sliding window.
func (c *TokenCache) Set(tokenType, userID, value string, absoluteExpiry time.Time) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key{tokenType: tokenType, userID: userID}] = entry{
		value:    value,
		absolute: absoluteExpiry,
		expires:  slide(now, c.sliding, absoluteExpiry),
	}
}

func (c *TokenCache) Remove(tokenType, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key{tokenType: tokenType, userID: userID})
}

// Len reports the number of live entries.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background janitor.
func (c *TokenCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// slide caps the sliding deadline at the absolute bound.
func slide(now time.Time, sliding time.Duration, absolute time.Time) time.Time {
	deadline := now.Add(sliding)
	if deadline.After(absolute) {
		return absolute
	}
	return deadline
}

func (c *TokenCache) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expires) || now.After(e.absolute) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}
