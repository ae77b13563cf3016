package services

import (
	"context"
	"fmt"
	"sync"
)

// Locker serializes work across processes. *cache.RedisLocker satisfies it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// keyedLocks hands out one RWMutex per key and forgets keys nobody holds
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sync.RWMutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*lockEntry)}
}

func (k *keyedLocks) acquire(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (k *keyedLocks) release(key string, entry *lockEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, key)
	}
}

// Lock takes the key exclusively and returns the unlock func
func (k *keyedLocks) Lock(key string) func() {
	entry := k.acquire(key)
	entry.Lock()
	return func() {
		entry.Unlock()
		k.release(key, entry)
	}
}

// RLock takes the key shared and returns the unlock func
func (k *keyedLocks) RLock(key string) func() {
	entry := k.acquire(key)
	entry.RLock()
	return func() {
		entry.RUnlock()
		k.release(key, entry)
	}
}

func startLockKey(quizID uint, studentID string) string {
	return fmt.Sprintf("start:%d:%s", quizID, studentID)
}

func attemptLockKey(attemptID uint) string {
	return fmt.Sprintf("attempt:%d", attemptID)
}
