package lock

import (
	"sort"
	"sync"
)

// Keyed serializes callers per key without a global lock.
type Keyed struct {
	entries map[string]*entry
	mu      sync.Mutex
}

type entry struct {
	refs int
	sync.Mutex
}

// New creates a Keyed lock.
func New() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Lock acquires the locks for keys in sorted order and returns the matching unlock function.
// Duplicate keys are locked once.
func (k *Keyed) Lock(keys ...string) func() {
	keys = unique(keys)
	held := make([]*entry, 0, len(keys))
	for _, key := range keys {
		e := k.ref(key)
		e.Lock()
		held = append(held, e)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
			k.unref(keys[i])
		}
	}
}

// Len returns the number of keys currently held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *Keyed) ref(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) unref(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.entries[key]
	if e.refs--; e.refs == 0 {
		delete(k.entries, key)
	}
}

func unique(keys []string) []string {
	ret := append([]string(nil), keys...)
	sort.Strings(ret)
	out := ret[:0]
	for i, key := range ret {
		if i > 0 && key == ret[i-1] {
			continue
		}
		out = append(out, key)
	}
	return out
}
