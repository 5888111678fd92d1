package marketdata

import (
	"sync"
	"time"
)

// PathCache holds fetched PricePaths for a single trading day. It is
// scoped to one backtest or refresh invocation and passed in explicitly;
// the cache is cleared whenever the date key changes, so stale paths from
// a previous day can never be served.
type PathCache struct {
	mu    sync.RWMutex
	date  string
	paths map[string]*PricePath
}

// NewPathCache creates an empty path cache.
func NewPathCache() *PathCache {
	return &PathCache{paths: make(map[string]*PricePath)}
}

// Get returns the cached path for symbol on date, if present.
func (pc *PathCache) Get(symbol string, date time.Time) *PricePath {
	key := dateKey(date)

	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if pc.date != key {
		return nil
	}
	return pc.paths[symbol]
}

// Put stores a path. Storing a path for a different date evicts every
// entry from the previous date first.
func (pc *PathCache) Put(symbol string, date time.Time, path *PricePath) {
	key := dateKey(date)

	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.date != key {
		pc.paths = make(map[string]*PricePath)
		pc.date = key
	}
	pc.paths[symbol] = path
}

// Len returns the number of cached paths for the current date.
func (pc *PathCache) Len() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.paths)
}

func dateKey(date time.Time) string {
	return date.Format("2006-01-02")
}
