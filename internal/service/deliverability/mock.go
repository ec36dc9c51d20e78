package deliverability

import (
	"context"
	"strings"
	"sync"
)

// MockService implements Service for unit tests. Unknown addresses are Deliverable.
type MockService struct {
	mu       sync.Mutex
	verdicts map[string]Verdict
	errs     map[string]error
	calls    []string
	gate     chan struct{}
}

var _ Service = (*MockService)(nil)

// NewMockService creates a mock that reports every address deliverable.
func NewMockService() *MockService {
	return &MockService{
		verdicts: make(map[string]Verdict),
		errs:     make(map[string]error),
	}
}

// SetVerdict fixes the verdict for email.
func (m *MockService) SetVerdict(email string, v Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts[strings.ToLower(email)] = v
}

// SetError makes lookups for email fail with err.
func (m *MockService) SetError(email string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[strings.ToLower(email)] = err
}

// Block makes every Check wait until the returned release func is called.
func (m *MockService) Block() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (m *MockService) Check(ctx context.Context, email string) (Verdict, error) {
	key := strings.ToLower(email)
	m.mu.Lock()
	m.calls = append(m.calls, email)
	gate := m.gate
	v, hasVerdict := m.verdicts[key]
	err := m.errs[key]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return CheckFailed, ctx.Err()
		}
	}
	if err != nil {
		return CheckFailed, err
	}
	if !hasVerdict {
		return Deliverable, nil
	}
	return v, nil
}

// Calls returns the addresses checked so far, in order.
func (m *MockService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
