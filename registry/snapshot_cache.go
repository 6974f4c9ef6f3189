// Copyright 2025 AgencyHub
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"sync"
	"time"

	"agencyhub/platform/recommend"
)

// CacheEntry represents a cached value with expiration.
type CacheEntry[T any] struct {
	Value      T
	ExpiresAt  time.Time
	LastUpdate time.Time
}

// IsExpired checks if the cache entry has expired.
func (e *CacheEntry[T]) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// SnapshotCache is a load-through TTL cache over CatalogRepository
// snapshots, so the recommendation endpoint does not hit the registry
// on every call. Catalog and rule edits are administrator-driven and
// infrequent; a short TTL keeps them visible without invalidation fanout.
type SnapshotCache struct {
	repo  *CatalogRepository
	ttl   time.Duration
	mu    sync.RWMutex
	entry *CacheEntry[*recommend.Snapshot]

	hits   int64
	misses int64
}

// NewSnapshotCache creates a snapshot cache with the specified TTL.
func NewSnapshotCache(repo *CatalogRepository, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SnapshotCache{repo: repo, ttl: ttl}
}

// Get returns the cached snapshot, loading from the repository when the
// entry is missing or expired.
func (c *SnapshotCache) Get(ctx context.Context) (*recommend.Snapshot, error) {
	c.mu.RLock()
	entry := c.entry
	c.mu.RUnlock()

	if entry != nil && !entry.IsExpired() {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return entry.Value, nil
	}

	snap, err := c.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c.mu.Lock()
	c.misses++
	c.entry = &CacheEntry[*recommend.Snapshot]{
		Value:      snap,
		ExpiresAt:  now.Add(c.ttl),
		LastUpdate: now,
	}
	c.mu.Unlock()

	return snap, nil
}

// Invalidate drops the cached snapshot so the next Get reloads.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}

// Stats returns hit/miss counters.
func (c *SnapshotCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
