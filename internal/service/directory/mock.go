package directory

import (
	"context"
	"sync"
)

// MockDirectoryService implements Service for unit tests with reqres-style demo data.
type MockDirectoryService struct {
	mu    sync.Mutex
	users []User
	err   error
	calls int
}

// NewMockDirectoryService creates a mock pre-populated with two demo users.
func NewMockDirectoryService() *MockDirectoryService {
	return &MockDirectoryService{
		users: []User{
			{Name: "George Bluth", Email: "george.bluth@reqres.in", Phone: "-"},
			{Name: "Janet Weaver", Email: "janet.weaver@reqres.in", Phone: "-"},
		},
	}
}

func (m *MockDirectoryService) ListUsers(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]User(nil), m.users...), nil
}

// SetUsers replaces the directory contents.
func (m *MockDirectoryService) SetUsers(users []User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append([]User(nil), users...)
}

// SetError makes ListUsers fail with err until cleared with nil.
func (m *MockDirectoryService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times ListUsers ran.
func (m *MockDirectoryService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Compile-time interface check
var _ Service = (*MockDirectoryService)(nil)
