package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"carscout/models"
)

// Cache shields upstream sources from duplicate load: identical criteria
// issued twice within the TTL reuse the cached pass result with no upstream
// call.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.RawListing, bool)
	Put(ctx context.Context, key string, items []models.RawListing)
}

// Key hashes (source, pass, normalized criteria) into a cache key.
// Unrelated criteria never collide beyond sha256 odds.
func Key(source string, pass models.PassLevel, criteria models.SearchCriteria) string {
	input := fmt.Sprintf("%s|%s|%s", source, pass, criteria.NormalizedKey())
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

type entry struct {
	items     []models.RawListing
	expiresAt time.Time
}

// Memory is the in-process cache. A background sweep evicts expired
// entries; Get reports a miss for an expired entry even before the sweep
// reaches it.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]models.RawListing, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.items, true
}

func (m *Memory) Put(_ context.Context, key string, items []models.RawListing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{items: items, expiresAt: time.Now().Add(m.ttl)}
}

func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Memory) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for key, e := range m.entries {
				if now.After(e.expiresAt) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}
