package client

import "sync"

// atomicState guards the snapshot swap. Reads return the value by copy so
// a snapshot taken mid-operation is always internally consistent.
type atomicState struct {
	mu    sync.RWMutex
	state State
}

func (a *atomicState) get() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *atomicState) set(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = s
}
