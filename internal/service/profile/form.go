package profile

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	applog "github.com/janisto/hive-profiles/internal/platform/logging"
	"github.com/janisto/hive-profiles/internal/platform/metrics"
	"github.com/janisto/hive-profiles/internal/platform/timeutil"
)

const (
	// DefaultSubmittedDisplay is how long the confirmation shows before navigating away.
	DefaultSubmittedDisplay = 1500 * time.Millisecond
	// DefaultRedirectTo is where a client goes after a successful submission.
	DefaultRedirectTo = "/"
)

// State is the phase of a form's current submission attempt.
type State string

const (
	StateEditing         State = "editing"
	StateValidatingSync  State = "validating_sync"
	StateValidatingEmail State = "validating_email"
	StateSubmitted       State = "submitted"
)

// ProfileStore is what a form needs from the profile collection.
type ProfileStore interface {
	Append(ctx context.Context, p Profile) (Profile, error)
	Get(ctx context.Context, id string) (Profile, error)
}

// Snapshot is a consistent copy of a form's state.
type Snapshot struct {
	ID            string
	Draft         Draft
	Errors        Errors
	State         State
	CheckingEmail bool
	// EditingID is the record the draft was loaded from, if any.
	EditingID    string
	Saved        *Profile
	RedirectTo   string
	DisplayUntil time.Time
	UpdatedAt    time.Time
}

// SubmitResult reports one submission attempt.
type SubmitResult struct {
	Submitted  bool
	Profile    Profile
	Errors     Errors
	RedirectTo string
	DisplayFor time.Duration
}

// Form owns one draft and runs its submissions. At most one submission,
// and therefore one email lookup, runs at a time; a second Submit while
// one is running returns ErrSubmitInProgress and changes nothing.
type Form struct {
	id        string
	validator *Validator
	store     ProfileStore
	clock     timeutil.Clock
	display   time.Duration
	redirect  string
	metrics   *metrics.Metrics

	mu           sync.Mutex
	draft        Draft
	errs         Errors
	state        State
	submitting   bool
	checking     bool
	editingID    string
	saved        *Profile
	displayUntil time.Time
	updatedAt    time.Time
}

// FormOption configures a Form.
type FormOption func(*Form)

// WithFormClock sets the clock used for derivation and validation.
func WithFormClock(c timeutil.Clock) FormOption {
	return func(f *Form) {
		if c != nil {
			f.clock = c
		}
	}
}

// WithSubmittedDisplay sets how long the submitted confirmation shows.
func WithSubmittedDisplay(d time.Duration) FormOption {
	return func(f *Form) {
		if d >= 0 {
			f.display = d
		}
	}
}

// WithRedirectTo sets where clients go after a successful submission.
func WithRedirectTo(path string) FormOption {
	return func(f *Form) {
		if path != "" {
			f.redirect = path
		}
	}
}

// WithFormMetrics records submission outcomes on m.
func WithFormMetrics(m *metrics.Metrics) FormOption {
	return func(f *Form) {
		f.metrics = m
	}
}

// NewForm creates an empty form in the editing state.
func NewForm(validator *Validator, store ProfileStore, opts ...FormOption) *Form {
	f := &Form{
		id:        uuid.NewString(),
		validator: validator,
		store:     store,
		clock:     timeutil.SystemClock,
		display:   DefaultSubmittedDisplay,
		redirect:  DefaultRedirectTo,
		errs:      Errors{},
		state:     StateEditing,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.updatedAt = f.clock()
	return f
}

// ID returns the form's identifier.
func (f *Form) ID() string {
	return f.id
}

// Load replaces the draft with the saved record id, for correcting it.
// Submitting appends a new record; the loaded one is left as it was.
func (f *Form) Load(ctx context.Context, id string) error {
	p, err := f.store.Get(ctx, id)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editableLocked(); err != nil {
		return err
	}
	f.draft = p.Draft()
	f.editingID = p.ID
	f.errs = Errors{}
	f.updatedAt = f.clock()
	return nil
}

// FieldValue is one field assignment.
type FieldValue struct {
	Field Field
	Value string
}

// Set assigns one field. Editing age recomputes dob and editing dob
// recomputes age; age and phone keep digits only.
func (f *Form) Set(field Field, value string) error {
	return f.SetMany(FieldValue{Field: field, Value: value})
}

// SetMany applies the assignments in order as one edit. Either all of them
// land or, when the form is not editable or a field is unknown, none do.
func (f *Form) SetMany(values ...FieldValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editableLocked(); err != nil {
		return err
	}
	for _, v := range values {
		if !slices.Contains(Fields, v.Field) {
			return ErrUnknownField
		}
	}

	now := f.clock()
	for _, v := range values {
		f.applyLocked(v.Field, v.Value, now)
	}
	f.updatedAt = now
	return nil
}

func (f *Form) applyLocked(field Field, value string, now time.Time) {
	switch field {
	case FieldName:
		f.draft.Name = value
	case FieldAge:
		age := SanitizeAge(value)
		f.draft.Age = age
		f.draft.DOB = DOBFromAge(age, now)
	case FieldDOB:
		dob := strings.TrimSpace(value)
		f.draft.DOB = dob
		f.draft.Age = AgeFromDOB(dob, now)
	case FieldEmail:
		f.draft.Email = value
	case FieldPhone:
		f.draft.Phone = SanitizePhone(value)
	case FieldGender:
		f.draft.Gender = value
	}
}

func (f *Form) editableLocked() error {
	switch {
	case f.submitting:
		return ErrFormLocked
	case f.state == StateSubmitted:
		return ErrFormSubmitted
	default:
		return nil
	}
}

// Submit validates the draft and appends it when every rule passes. Field
// errors are returned in the result, not as an error. The email lookup and
// the append run to completion even if ctx is canceled.
func (f *Form) Submit(ctx context.Context) (SubmitResult, error) {
	f.mu.Lock()
	if f.state == StateSubmitted {
		f.mu.Unlock()
		return SubmitResult{}, ErrFormSubmitted
	}
	if f.submitting {
		f.mu.Unlock()
		f.metrics.IncFormSubmission(metrics.OutcomeBusy)
		applog.LogDebug(ctx, "submission dropped while another is running", zap.String("formId", f.id))
		return SubmitResult{}, ErrSubmitInProgress
	}
	f.submitting = true
	f.state = StateValidatingSync
	draft := f.draft
	now := f.clock()
	f.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	errs := ValidateFields(draft, now)
	if _, bad := errs[FieldEmail]; !bad {
		f.mu.Lock()
		f.state = StateValidatingEmail
		f.checking = true
		f.mu.Unlock()

		fe, failed := f.validator.CheckEmail(ctx, strings.TrimSpace(draft.Email))
		if failed {
			errs[FieldEmail] = fe
		}

		f.mu.Lock()
		f.checking = false
		f.mu.Unlock()
	}

	if !errs.Empty() {
		f.finish(StateEditing, errs, nil)
		f.metrics.IncFormSubmission(metrics.OutcomeInvalid)
		return SubmitResult{Errors: errs}, nil
	}

	saved, err := f.store.Append(ctx, FromDraft(draft))
	if err != nil {
		f.finish(StateEditing, Errors{}, nil)
		f.metrics.IncFormSubmission(metrics.OutcomeFailed)
		applog.LogError(ctx, "failed to save profile", err, zap.String("formId", f.id))
		return SubmitResult{}, err
	}

	f.finish(StateSubmitted, Errors{}, &saved)
	f.metrics.IncFormSubmission(metrics.OutcomeSubmitted)
	return SubmitResult{
		Submitted:  true,
		Profile:    saved,
		Errors:     Errors{},
		RedirectTo: f.redirect,
		DisplayFor: f.display,
	}, nil
}

func (f *Form) finish(state State, errs Errors, saved *Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock()
	f.state = state
	f.errs = errs
	f.submitting = false
	f.updatedAt = now
	if saved != nil {
		f.saved = saved
		f.displayUntil = now.Add(f.display)
	}
}

// Submitting reports whether a submission is running.
func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Snapshot returns a copy of the form's current state.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	errs := make(Errors, len(f.errs))
	for k, v := range f.errs {
		errs[k] = v
	}
	s := Snapshot{
		ID:            f.id,
		Draft:         f.draft,
		Errors:        errs,
		State:         f.state,
		CheckingEmail: f.checking,
		EditingID:     f.editingID,
		UpdatedAt:     f.updatedAt,
	}
	if f.saved != nil {
		saved := *f.saved
		s.Saved = &saved
		s.RedirectTo = f.redirect
		s.DisplayUntil = f.displayUntil
	}
	return s
}
