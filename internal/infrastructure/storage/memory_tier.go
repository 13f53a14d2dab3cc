package storage

import "sync"

// MemoryTier is the volatile tier: a plain in-process map that lives only as
// long as its window. It doubles as the fast mirror consulted when the
// durable tier comes up empty.
type MemoryTier struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryTier returns an empty volatile tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{values: make(map[string][]byte)}
}

func (t *MemoryTier) Get(key string) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *MemoryTier) Set(key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[key] = stored
	return nil
}

func (t *MemoryTier) Delete(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.values, key)
	return nil
}

func (t *MemoryTier) Keys() ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	return keys, nil
}

func (t *MemoryTier) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values = make(map[string][]byte)
	return nil
}
