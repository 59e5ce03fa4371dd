package near

import (
	"strings"
	"sync"

	"github.com/digitaltembo/Crime-And-Dining/index"
	"github.com/digitaltembo/Crime-And-Dining/nearutil"
)

// sharedCache holds built indexes keyed by db path/table/dataset so that
// connections to the same database reuse them.
var sharedCache = struct {
	mu    sync.RWMutex
	byKey map[string]*cacheEntry
}{byKey: make(map[string]*cacheEntry)}

type cacheEntry struct {
	mu       sync.RWMutex
	idx      index.Index
	building bool
	cond     *sync.Cond
}

func newCacheEntry() *cacheEntry {
	e := &cacheEntry{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *cacheEntry) get() index.Index {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx
}

func (e *cacheEntry) set(idx index.Index) {
	e.mu.Lock()
	e.idx = idx
	e.mu.Unlock()
}

// waitForBuild blocks while another goroutine builds the entry.
func (e *cacheEntry) waitForBuild() index.Index {
	e.mu.Lock()
	for e.building {
		e.cond.Wait()
	}
	idx := e.idx
	e.mu.Unlock()
	return idx
}

// startBuild claims the build of an empty entry.
func (e *cacheEntry) startBuild() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.idx != nil || e.building {
		return false
	}
	e.building = true
	return true
}

func (e *cacheEntry) finishBuild() {
	e.mu.Lock()
	e.building = false
	e.cond.Broadcast()
	e.mu.Unlock()
}

func cacheKey(dbPath, tableName, dataset string) string {
	return dbPath + "|" + tableName + "|" + dataset
}

func getCacheEntry(key string) *cacheEntry {
	sharedCache.mu.RLock()
	entry := sharedCache.byKey[key]
	sharedCache.mu.RUnlock()
	if entry != nil {
		return entry
	}
	sharedCache.mu.Lock()
	defer sharedCache.mu.Unlock()
	if entry = sharedCache.byKey[key]; entry == nil {
		entry = newCacheEntry()
		sharedCache.byKey[key] = entry
	}
	return entry
}

// InvalidateCache drops cached indexes of shadow for dataset, or for every
// dataset when dataset is empty, and returns the number of entries cleared.
func InvalidateCache(shadow, dataset string) int {
	tableName := nearutil.TableNameFromShadow(shadow)
	if tableName == "" {
		tableName = shadow
	}
	sharedCache.mu.RLock()
	defer sharedCache.mu.RUnlock()
	count := 0
	for k, entry := range sharedCache.byKey {
		var hit bool
		if dataset == "" {
			hit = strings.Contains(k, "|"+tableName+"|")
		} else {
			hit = strings.HasSuffix(k, "|"+tableName+"|"+dataset)
		}
		if hit && entry.get() != nil {
			entry.set(nil)
			count++
		}
	}
	return count
}
