package application

import (
	"slices"
	"sync"
)

// keyLocker serializes writers on named keys. Entries are reference counted
// so the map only holds keys that are in use.
type keyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocker() *keyLocker {
	return &keyLocker{locks: make(map[string]*keyLock)}
}

// Lock acquires every key in sorted order and returns the matching release.
// Sorting keeps two writers that share keys from deadlocking.
func (l *keyLocker) Lock(keys ...string) (unlock func()) {
	ordered := slices.Clone(keys)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	held := make([]*keyLock, 0, len(ordered))
	for _, key := range ordered {
		l.mu.Lock()
		lock, ok := l.locks[key]
		if !ok {
			lock = &keyLock{}
			l.locks[key] = lock
		}
		lock.refs++
		l.mu.Unlock()

		lock.mu.Lock()
		held = append(held, lock)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, ordered[i])
			}
			l.mu.Unlock()
		}
	}
}

func (l *keyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func sessionKeys(teacherID, courseID string) []string {
	return []string{"teacher:" + teacherID, "course:" + courseID}
}
