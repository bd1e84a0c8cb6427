package utils

import (
	"sync"
)

// OptionalMutex is a sync.Mutex that only locks when UseMutex is true, for types whose
// callers may already be synchronizing access themselves
type OptionalMutex struct {
	Mutex    sync.Mutex
	UseMutex bool
}

func (m *OptionalMutex) Lock() {
	if m.UseMutex {
		m.Mutex.Lock()
	}
}

func (m *OptionalMutex) Unlock() {
	if m.UseMutex {
		m.Mutex.Unlock()
	}
}
