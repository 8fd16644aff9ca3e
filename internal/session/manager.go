package session

import (
	"sync"
	"time"
)

// Manager serializes event handling per conversation so that a turn is never
// read and written by two events at once. Different conversations run in
// parallel.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*conversationLock
}

type conversationLock struct {
	mu       sync.Mutex
	lastUsed time.Time
	// holders counts goroutines inside or waiting on WithLock.
	holders int
}

func NewManager() *Manager {
	return &Manager{
		locks: make(map[string]*conversationLock),
	}
}

// WithLock runs fn while holding the conversation's mutex.
func (m *Manager) WithLock(conversationID string, fn func() error) error {
	m.mu.Lock()
	cl, ok := m.locks[conversationID]
	if !ok {
		cl = &conversationLock{}
		m.locks[conversationID] = cl
	}
	cl.holders++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		cl.holders--
		cl.lastUsed = time.Now()
		m.mu.Unlock()
	}()

	cl.mu.Lock()
	defer cl.mu.Unlock()
	return fn()
}

// Cleanup drops idle locks not used within maxAge.
func (m *Manager) Cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, cl := range m.locks {
		if cl.holders == 0 && now.Sub(cl.lastUsed) > maxAge {
			delete(m.locks, id)
		}
	}
}

// Len reports how many conversations currently have a lock.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
