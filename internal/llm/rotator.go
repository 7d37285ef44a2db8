package llm

import "sync"

// KeyRotator hands out API keys round-robin. Every call advances the
// cursor by one position, spreading quota consumption evenly across the
// pool without tracking per-key usage.
type KeyRotator struct {
	mu    sync.Mutex
	keys  []string
	index int
}

// NewKeyRotator builds a rotator over the non-empty keys in the list.
// Returns nil when no usable key remains, which callers treat as "this
// provider is not configured".
func NewKeyRotator(keys []string) *KeyRotator {
	usable := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			usable = append(usable, k)
		}
	}
	if len(usable) == 0 {
		return nil
	}
	return &KeyRotator{keys: usable}
}

// Next returns the current key and advances the cursor.
func (r *KeyRotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.keys[r.index]
	r.index = (r.index + 1) % len(r.keys)
	return key
}

// Size reports the pool size.
func (r *KeyRotator) Size() int {
	return len(r.keys)
}
