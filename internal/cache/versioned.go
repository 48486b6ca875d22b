package cache

import (
	"hash/fnv"
	"sync"
)

const versionStripes = 256

var _ Cache[string] = (*Versioned[string])(nil)

// Versioned counts writes per key on top of a Cache. Delete bumps the
// version of its key, and SetIfVersion only stores data when no Delete
// happened since the caller took Version. Keys share a fixed set of
// counters, so unrelated keys may collide; a collision only skips a Set.
type Versioned[T any] struct {
	Cache[T]

	mu       sync.Mutex
	versions [versionStripes]uint64
}

func NewVersioned[T any](c Cache[T]) *Versioned[T] {
	return &Versioned[T]{Cache: c}
}

func (v *Versioned[T]) stripe(key string) *uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &v.versions[h.Sum32()%versionStripes]
}

// Version returns the current write version of key.
func (v *Versioned[T]) Version(key string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return *v.stripe(key)
}

// Delete drops key and bumps its version.
func (v *Versioned[T]) Delete(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	*v.stripe(key)++
	v.Cache.Delete(key)
}

// SetIfVersion stores data when key is still at version. It reports
// whether the value was stored.
func (v *Versioned[T]) SetIfVersion(key string, version uint64, data T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if *v.stripe(key) != version {
		return false
	}
	v.Cache.Set(key, data)
	return true
}
