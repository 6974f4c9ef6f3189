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

package tenantpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"agencyhub/platform/shared/logger"
)

var (
	// ErrTenantNotReady is returned while the agency is still
	// provisioning or ended up failed. Callers must not wait; the
	// onboarding flow polls status separately.
	ErrTenantNotReady = errors.New("tenant database is not ready")

	// ErrTenantInactive is returned for deactivated agencies.
	ErrTenantInactive = errors.New("tenant is deactivated")
)

// TenantInfo is the routing view of an agency.
type TenantInfo struct {
	AgencyID     string
	DatabaseName string
	Ready        bool
	Active       bool
}

// Lookup resolves an agency to its routing info. The registry's agency
// repository satisfies this through a small adapter in the gateway.
type Lookup interface {
	LookupTenant(ctx context.Context, agencyID string) (*TenantInfo, error)
}

// OpenFunc opens a connection pool to the named tenant database.
type OpenFunc func(ctx context.Context, databaseName string) (*sql.DB, error)

// Config bounds the manager.
type Config struct {
	// MaxTenants caps simultaneously open tenant pools. When full, the
	// least recently used pool is evicted.
	MaxTenants int `yaml:"max_tenants"`
	// MaxOpenConns and MaxIdleConns apply per tenant pool.
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	// IdleTTL closes pools unused for this long.
	IdleTTL time.Duration `yaml:"idle_ttl"`
	// SweepInterval is how often idle pools are collected.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type poolEntry struct {
	db           *sql.DB
	databaseName string
	lastUsed     time.Time
}

// Stats is a point-in-time view of the manager.
type Stats struct {
	OpenPools int   `json:"open_pools"`
	Acquires  int64 `json:"acquires"`
	Hits      int64 `json:"hits"`
	Evictions int64 `json:"evictions"`
}

// Manager keeps one lazily opened pool per agency.
type Manager struct {
	lookup Lookup
	open   OpenFunc
	cfg    Config
	log    *logger.Logger

	mu    sync.Mutex
	pools map[string]*poolEntry

	acquires  int64
	hits      int64
	evictions int64
}

// NewManager creates a tenant pool manager.
func NewManager(lookup Lookup, open OpenFunc, cfg Config) *Manager {
	if cfg.MaxTenants <= 0 {
		cfg.MaxTenants = 100
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 5
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	return &Manager{
		lookup: lookup,
		open:   open,
		cfg:    cfg,
		log:    logger.New("tenant-pool"),
		pools:  make(map[string]*poolEntry),
	}
}

// Acquire returns the agency's pool, opening it on first use. The
// returned *sql.DB is shared; callers never close it.
func (m *Manager) Acquire(ctx context.Context, agencyID string) (*sql.DB, error) {
	m.mu.Lock()
	m.acquires++
	if entry, ok := m.pools[agencyID]; ok {
		entry.lastUsed = time.Now()
		m.hits++
		db := entry.db
		m.mu.Unlock()
		return db, nil
	}
	m.mu.Unlock()

	info, err := m.lookup.LookupTenant(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant %s: %w", agencyID, err)
	}
	if !info.Ready {
		return nil, ErrTenantNotReady
	}
	if !info.Active {
		return nil, ErrTenantInactive
	}

	db, err := m.open(ctx, info.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to open tenant pool for %s: %w", agencyID, err)
	}
	db.SetMaxOpenConns(m.cfg.MaxOpenConns)
	db.SetMaxIdleConns(m.cfg.MaxIdleConns)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Lost a race with a concurrent Acquire for the same agency.
	if existing, ok := m.pools[agencyID]; ok {
		go func() { _ = db.Close() }()
		existing.lastUsed = time.Now()
		return existing.db, nil
	}

	if len(m.pools) >= m.cfg.MaxTenants {
		m.evictOldestLocked()
	}

	m.pools[agencyID] = &poolEntry{
		db:           db,
		databaseName: info.DatabaseName,
		lastUsed:     time.Now(),
	}

	m.log.Info(agencyID, "", "opened tenant pool",
		map[string]interface{}{"database": info.DatabaseName, "open_pools": len(m.pools)})
	return db, nil
}

// Release marks the agency's pool as recently used without handing out
// a connection. Callers that finished a unit of work use it to keep a
// busy tenant warm in the LRU ordering.
func (m *Manager) Release(agencyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.pools[agencyID]; ok {
		entry.lastUsed = time.Now()
	}
}

// Invalidate closes and forgets the agency's pool. Called when an agency
// is deactivated or its database moves.
func (m *Manager) Invalidate(agencyID string) {
	m.mu.Lock()
	entry, ok := m.pools[agencyID]
	if ok {
		delete(m.pools, agencyID)
	}
	m.mu.Unlock()

	if ok {
		_ = entry.db.Close()
		m.log.Info(agencyID, "", "invalidated tenant pool",
			map[string]interface{}{"database": entry.databaseName})
	}
}

// Run sweeps idle pools until the context is cancelled, then closes
// everything.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// CloseAll closes every open pool.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]*poolEntry)
	m.mu.Unlock()

	for agencyID, entry := range pools {
		if err := entry.db.Close(); err != nil {
			m.log.Warn(agencyID, "", "error closing tenant pool",
				map[string]interface{}{"error": err.Error()})
		}
	}
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		OpenPools: len(m.pools),
		Acquires:  m.acquires,
		Hits:      m.hits,
		Evictions: m.evictions,
	}
}

// sweep closes pools idle past the TTL.
func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var expired []*poolEntry
	for agencyID, entry := range m.pools {
		if entry.lastUsed.Before(cutoff) {
			delete(m.pools, agencyID)
			m.evictions++
			expired = append(expired, entry)
		}
	}
	m.mu.Unlock()

	for _, entry := range expired {
		_ = entry.db.Close()
	}
}

// evictOldestLocked drops the least recently used pool. Caller holds mu.
func (m *Manager) evictOldestLocked() {
	var oldestID string
	var oldest *poolEntry
	for agencyID, entry := range m.pools {
		if oldest == nil || entry.lastUsed.Before(oldest.lastUsed) {
			oldestID = agencyID
			oldest = entry
		}
	}
	if oldest == nil {
		return
	}

	delete(m.pools, oldestID)
	m.evictions++
	go func() { _ = oldest.db.Close() }()

	m.log.Info(oldestID, "", "evicted least recently used tenant pool",
		map[string]interface{}{"database": oldest.databaseName})
}
