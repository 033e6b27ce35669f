package panel

import (
	"fmt"
	"sync"
	"testing"
)

func TestETagCache_entryReplacedAsUnit(t *testing.T) {
	ec := newETagCache()
	key := cacheKey(Trojan, "abc123")

	// Writers store pairs whose etag and user id always agree; readers
	// must never observe a torn combination.
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v := int64(w*1000 + i)
				unlock := ec.lock(key)
				ec.store(key, cacheEntry{
					etag:  fmt.Sprintf("v%d", v),
					users: []User{{ID: v}},
				})
				unlock()
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				e, ok := ec.entry(key)
				if !ok {
					continue
				}
				want := fmt.Sprintf("v%d", e.users[0].ID)
				if e.etag != want {
					t.Errorf("torn entry: etag %q paired with user %d", e.etag, e.users[0].ID)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestETagCache_keysIndependent(t *testing.T) {
	ec := newETagCache()

	k1 := cacheKey(Trojan, "a")
	k2 := cacheKey(VMess, "a")

	// Holding one key's lock must not block another key.
	unlock1 := ec.lock(k1)
	done := make(chan struct{})
	go func() {
		unlock2 := ec.lock(k2)
		unlock2()
		close(done)
	}()
	<-done
	unlock1()

	ec.store(k1, cacheEntry{etag: "v1"})
	if _, ok := ec.entry(k2); ok {
		t.Error("entry leaked across keys")
	}

	ec.clear()
	if _, ok := ec.entry(k1); ok {
		t.Error("clear left entries behind")
	}
}
