package mocks

import (
	"sync"

	"github.com/user/vidloop/pkg/ports"
)

// SessionStorage is an in-memory mock of ports.SessionStorage.
type SessionStorage struct {
	mu     sync.Mutex
	values map[string]string

	GetFunc    func(key string) (string, bool, error)
	SetFunc    func(key, value string) error
	DeleteFunc func(key string) error

	// Recorded calls for verification
	SetCalls    int
	DeleteCalls int
}

// NewSessionStorage creates an empty mock storage.
func NewSessionStorage() *SessionStorage {
	return &SessionStorage{values: make(map[string]string)}
}

func (m *SessionStorage) Get(key string) (string, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *SessionStorage) Set(key, value string) error {
	m.mu.Lock()
	m.SetCalls++
	m.mu.Unlock()
	if m.SetFunc != nil {
		return m.SetFunc(key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *SessionStorage) Delete(key string) error {
	m.mu.Lock()
	m.DeleteCalls++
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var _ ports.SessionStorage = (*SessionStorage)(nil)
