package weather

import (
	"sync"
	"time"

	"club-events/internal/models"
)

// Entry is a cached snapshot with the time it was fetched.
type Entry struct {
	Snapshot  models.WeatherSnapshot
	FetchedAt time.Time
}

// Cache holds the single process-wide current-weather entry.
type Cache interface {
	Get() (Entry, bool)
	Set(Entry)
	Clear()
}

// MemoryCache is a Cache kept in process memory.
type MemoryCache struct {
	mu    sync.RWMutex
	entry Entry
	ok    bool
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

func (c *MemoryCache) Get() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry, c.ok
}

func (c *MemoryCache) Set(e Entry) {
	c.mu.Lock()
	c.entry, c.ok = e, true
	c.mu.Unlock()
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.entry, c.ok = Entry{}, false
	c.mu.Unlock()
}
