package profile

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProfileStore implements ProfileStore for unit tests.
type MockProfileStore struct {
	mu        sync.Mutex
	profiles  []Profile
	appendErr error
	nextID    int
}

// NewMockProfileStore creates an empty mock store.
func NewMockProfileStore() *MockProfileStore {
	return &MockProfileStore{}
}

func (m *MockProfileStore) Append(_ context.Context, p Profile) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return Profile{}, m.appendErr
	}
	m.nextID++
	p.ID = fmt.Sprintf("profile-%d", m.nextID)
	p.SavedAt = time.Now().UTC()
	m.profiles = append(m.profiles, p)
	return p, nil
}

func (m *MockProfileStore) Get(_ context.Context, id string) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

// SetAppendError makes Append fail with err until cleared with nil.
func (m *MockProfileStore) SetAppendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

// Profiles returns a copy of the appended records.
func (m *MockProfileStore) Profiles() []Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Profile(nil), m.profiles...)
}

// Clear drops every appended profile. IDs keep counting up.
func (m *MockProfileStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = nil
}

// Compile-time interface checks
var (
	_ ProfileStore = (*MockProfileStore)(nil)
	_ ProfileStore = (*Store)(nil)
)
