package profile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	applog "github.com/janisto/hive-profiles/internal/platform/logging"
	"github.com/janisto/hive-profiles/internal/platform/metrics"
	"github.com/janisto/hive-profiles/internal/platform/timeutil"
)

// DefaultFormIdleTimeout is how long an untouched form is kept.
const DefaultFormIdleTimeout = 30 * time.Minute

type formEntry struct {
	form     *Form
	lastSeen time.Time
}

// FormRegistry keeps open forms by ID and drops those left idle.
type FormRegistry struct {
	newForm func() *Form
	idle    time.Duration
	clock   timeutil.Clock
	metrics *metrics.Metrics

	mu    sync.Mutex
	forms map[string]*formEntry
}

// RegistryOption configures a FormRegistry.
type RegistryOption func(*FormRegistry)

// WithIdleTimeout sets how long an untouched form is kept.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *FormRegistry) {
		if d > 0 {
			r.idle = d
		}
	}
}

// WithRegistryClock sets the clock used for idle tracking.
func WithRegistryClock(c timeutil.Clock) RegistryOption {
	return func(r *FormRegistry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithRegistryMetrics reports the open form count on m.
func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *FormRegistry) {
		r.metrics = m
	}
}

// NewFormRegistry creates a registry that builds forms with newForm.
func NewFormRegistry(newForm func() *Form, opts ...RegistryOption) *FormRegistry {
	r := &FormRegistry{
		newForm: newForm,
		idle:    DefaultFormIdleTimeout,
		clock:   timeutil.SystemClock,
		forms:   make(map[string]*formEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create opens a new empty form.
func (r *FormRegistry) Create() *Form {
	f := r.newForm()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[f.ID()] = &formEntry{form: f, lastSeen: r.clock()}
	r.metrics.SetFormsActive(len(r.forms))
	return f
}

// Get returns the form with id and marks it as used.
func (r *FormRegistry) Get(id string) (*Form, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.forms[id]
	if !ok {
		return nil, ErrFormNotFound
	}
	now := r.clock()
	if r.expiredLocked(e, now) {
		delete(r.forms, id)
		r.metrics.SetFormsActive(len(r.forms))
		return nil, ErrFormNotFound
	}
	e.lastSeen = now
	return e.form, nil
}

// Delete discards the form with id. A form with a submission running
// cannot be discarded.
func (r *FormRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.forms[id]
	if !ok {
		return ErrFormNotFound
	}
	if e.form.Submitting() {
		return ErrFormLocked
	}
	delete(r.forms, id)
	r.metrics.SetFormsActive(len(r.forms))
	return nil
}

// Len returns the number of open forms.
func (r *FormRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

// Sweep drops idle forms and returns how many it removed.
func (r *FormRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	removed := 0
	for id, e := range r.forms {
		if r.expiredLocked(e, now) {
			delete(r.forms, id)
			removed++
		}
	}
	r.metrics.SetFormsActive(len(r.forms))
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *FormRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				applog.LogDebug(ctx, "expired idle forms", zap.Int("count", n))
			}
		}
	}
}

// A form with a submission running never expires.
func (r *FormRegistry) expiredLocked(e *formEntry, now time.Time) bool {
	return now.Sub(e.lastSeen) > r.idle && !e.form.Submitting()
}
