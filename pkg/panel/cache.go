package panel

import (
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// cacheEntry is the unit of ETag cache state. The validator and the user
// list it validates are always replaced together, never independently.
type cacheEntry struct {
	etag  string
	users []User
}

// etagCache stores one cacheEntry per "<nodeType>:<registerID>" key.
// Entries never expire; the live key set is bounded by the sessions the
// operator actually runs.
type etagCache struct {
	entries *gocache.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newETagCache() *etagCache {
	return &etagCache{
		entries: gocache.New(gocache.NoExpiration, 0),
		locks:   make(map[string]*sync.Mutex),
	}
}

// lock acquires the per-key mutex and returns its release func. It
// serializes the lookup → conditional request → store window for one key
// so concurrent Users calls cannot interleave a stale etag with a fresh
// value, while leaving unrelated keys independent.
func (ec *etagCache) lock(key string) func() {
	ec.mu.Lock()
	l, ok := ec.locks[key]
	if !ok {
		l = &sync.Mutex{}
		ec.locks[key] = l
	}
	ec.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (ec *etagCache) entry(key string) (cacheEntry, bool) {
	v, ok := ec.entries.Get(key)
	if !ok {
		return cacheEntry{}, false
	}
	return v.(cacheEntry), true
}

func (ec *etagCache) store(key string, e cacheEntry) {
	ec.entries.Set(key, e, gocache.NoExpiration)
}

func (ec *etagCache) clear() {
	ec.entries.Flush()
}

func cacheKey(nodeType NodeType, registerID string) string {
	return string(nodeType) + ":" + registerID
}
