package status

import "sync"

// Aggregate is the last published daily change, as a signed fraction. It
// is written by the refresh engine and read by bus callers.
type Aggregate struct {
	mu    sync.RWMutex
	value float64
}

func (a *Aggregate) Load() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

// Store overwrites the value. The last writer wins.
func (a *Aggregate) Store(v float64) {
	a.mu.Lock()
	a.value = v
	a.mu.Unlock()
}
