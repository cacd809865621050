// locks/locks.go
package locks

import (
	"sync"
)

// KeyedMutex serializes work per key (the external table id). At most one
// in-flight critical section per key, system-wide within this process.
// Entries are reclaimed once uncontended so the registry does not grow
// with every table ever seen.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[string]*entry),
	}
}

// Lock blocks until the key's mutex is held and returns the release
// function. Callers must release via defer so the lock is dropped on
// every path out of the critical section.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}
}

// Len reports how many keys currently hold a registered lock entry.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
