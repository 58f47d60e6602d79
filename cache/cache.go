// Package cache memoises hunk matching results keyed by a content hash.
//
// A Cache is an explicit handle: callers create one and pass it to the
// matcher. Nothing in the engine keeps a process-wide instance.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/viant/patchtx/model"
)

// DefaultMaxEntries bounds the number of cached match results.
const DefaultMaxEntries = 1024

// Cache stores MatchResult values in a bounded ristretto cache.
type Cache struct {
	store *ristretto.Cache[string, *model.MatchResult]
}

// New creates a cache holding at most maxEntries results.
func New(maxEntries int64) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, *model.MatchResult]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create match cache: %w", err)
	}
	return &Cache{store: store}, nil
}

// Key derives a cache key from the original content, the canonical diff text
// and the search window.
func Key(original, diff string, window int) string {
	hash := sha256.New()
	hash.Write([]byte(original))
	hash.Write([]byte{0})
	hash.Write([]byte(diff))
	hash.Write([]byte{0})
	hash.Write([]byte(strconv.Itoa(window)))
	return hex.EncodeToString(hash.Sum(nil))
}

// Get returns a copy of the cached result for key.
func (c *Cache) Get(key string) (*model.MatchResult, bool) {
	if c == nil {
		return nil, false
	}
	result, ok := c.store.Get(key)
	if !ok || result == nil {
		return nil, false
	}
	return clone(result), true
}

// Set stores result under key and waits for the write to become visible.
func (c *Cache) Set(key string, result *model.MatchResult) {
	if c == nil || result == nil {
		return
	}
	c.store.Set(key, clone(result), 1)
	c.store.Wait()
}

// clone copies result and its failure so callers never share cached state.
func clone(result *model.MatchResult) *model.MatchResult {
	ret := *result
	if result.Failure != nil {
		failure := *result.Failure
		ret.Failure = &failure
	}
	return &ret
}

// Clear drops every cached result.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.store.Clear()
}

// Close releases cache goroutines.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.store.Close()
}
