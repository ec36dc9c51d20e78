package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/janisto/hive-profiles/internal/platform/kv"
	"github.com/janisto/hive-profiles/internal/platform/metrics"
	"github.com/janisto/hive-profiles/internal/platform/timeutil"
	"github.com/janisto/hive-profiles/internal/service/deliverability"
)

func newTestForm(checker EmailChecker, store ProfileStore, opts ...FormOption) *Form {
	opts = append([]FormOption{WithFormClock(timeutil.Fixed(testNow))}, opts...)
	return NewForm(NewValidator(checker), store, opts...)
}

func fillValid(t *testing.T, f *Form) {
	t.Helper()
	d := validDraft()
	for _, field := range []Field{FieldName, FieldDOB, FieldEmail, FieldPhone, FieldGender} {
		if err := f.Set(field, d.Get(field)); err != nil {
			t.Fatalf("set %s: %v", field, err)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFormSetDerivesAgeAndDOB(t *testing.T) {
	f := newTestForm(deliverability.NewMockService(), NewMockProfileStore())

	if err := f.Set(FieldDOB, "02/06/2000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := f.Snapshot().Draft; d.Age != "23" {
		t.Fatalf("expected age 23 from dob, got %q", d.Age)
	}

	if err := f.Set(FieldAge, "3a0x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := f.Snapshot().Draft
	if d.Age != "30" || d.DOB != "01/06/1994" {
		t.Fatalf("expected age 30 and dob 01/06/1994, got %q %q", d.Age, d.DOB)
	}

	_ = f.Set(FieldAge, "0")
	if d := f.Snapshot().Draft; d.Age != "0" || d.DOB != "" {
		t.Fatalf("expected zero age to clear dob, got %q %q", d.Age, d.DOB)
	}

	_ = f.Set(FieldDOB, "31/02/2020")
	if d := f.Snapshot().Draft; d.DOB != "31/02/2020" || d.Age != "" {
		t.Fatalf("expected invalid dob kept and age cleared, got %q %q", d.DOB, d.Age)
	}

	_ = f.Set(FieldPhone, "(012) 345-6789 ext 1")
	if d := f.Snapshot().Draft; d.Phone != "0123456789" {
		t.Fatalf("expected sanitized phone, got %q", d.Phone)
	}

	if err := f.Set(Field("nickname"), "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestFormSubmitSuccess(t *testing.T) {
	store := NewMockProfileStore()
	m := metrics.New()
	f := newTestForm(deliverability.NewMockService(), store,
		WithFormMetrics(m), WithRedirectTo("/home"), WithSubmittedDisplay(time.Second))
	fillValid(t, f)

	res, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Submitted || res.RedirectTo != "/home" || res.DisplayFor != time.Second {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Profile.Age != 23 || res.Profile.Name != "Jane Doe" || res.Profile.Gender != GenderFemale {
		t.Fatalf("unexpected saved profile %+v", res.Profile)
	}
	if len(store.Profiles()) != 1 {
		t.Fatalf("expected one appended profile, got %d", len(store.Profiles()))
	}

	snap := f.Snapshot()
	if snap.State != StateSubmitted || snap.Saved == nil || snap.RedirectTo != "/home" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !snap.DisplayUntil.Equal(testNow.Add(time.Second)) {
		t.Fatalf("unexpected display deadline %v", snap.DisplayUntil)
	}
	if got := testutil.ToFloat64(m.FormSubmissions.WithLabelValues(metrics.OutcomeSubmitted)); got != 1 {
		t.Fatalf("expected submitted outcome counted, got %v", got)
	}

	if err := f.Set(FieldName, "Other"); !errors.Is(err, ErrFormSubmitted) {
		t.Fatalf("expected ErrFormSubmitted on edit, got %v", err)
	}
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrFormSubmitted) {
		t.Fatalf("expected ErrFormSubmitted on resubmit, got %v", err)
	}
}

func TestFormSubmitWithErrorsStaysEditing(t *testing.T) {
	store := NewMockProfileStore()
	checker := deliverability.NewMockService()
	f := newTestForm(checker, store)
	_ = f.Set(FieldName, "Jane")
	_ = f.Set(FieldEmail, "jane@example.com")

	res, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Submitted || res.Errors.Empty() {
		t.Fatalf("expected field errors, got %+v", res)
	}
	if _, ok := res.Errors[FieldEmail]; ok {
		t.Fatalf("expected email to pass, got %+v", res.Errors[FieldEmail])
	}
	if len(checker.Calls()) != 1 {
		t.Fatalf("expected the email lookup despite other errors, got %d", len(checker.Calls()))
	}
	snap := f.Snapshot()
	if snap.State != StateEditing || len(snap.Errors) != len(res.Errors) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(store.Profiles()) != 0 {
		t.Fatal("expected nothing appended")
	}
}

func TestFormSubmitWhileCheckingIsNoOp(t *testing.T) {
	checker := deliverability.NewMockService()
	release := checker.Block()
	defer release()
	store := NewMockProfileStore()
	f := newTestForm(checker, store)
	fillValid(t, f)

	done := make(chan SubmitResult, 1)
	go func() {
		res, _ := f.Submit(context.Background())
		done <- res
	}()
	waitFor(t, func() bool { return f.Snapshot().CheckingEmail })

	if snap := f.Snapshot(); snap.State != StateValidatingEmail {
		t.Fatalf("expected validating_email, got %s", snap.State)
	}
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrSubmitInProgress) {
		t.Fatalf("expected ErrSubmitInProgress, got %v", err)
	}
	if err := f.Set(FieldName, "Changed"); !errors.Is(err, ErrFormLocked) {
		t.Fatalf("expected ErrFormLocked, got %v", err)
	}
	if len(store.Profiles()) != 0 {
		t.Fatal("expected the collection unchanged while checking")
	}

	release()
	res := <-done
	if !res.Submitted {
		t.Fatalf("expected first submission to complete, got %+v", res)
	}
	if len(store.Profiles()) != 1 || len(checker.Calls()) != 1 {
		t.Fatalf("expected one append and one lookup, got %d and %d", len(store.Profiles()), len(checker.Calls()))
	}
}

func TestFormCheckFailureClearsCheckingFlag(t *testing.T) {
	checker := deliverability.NewMockService()
	checker.SetError("jane@example.com", errors.New("network down"))
	f := newTestForm(checker, NewMockProfileStore())
	fillValid(t, f)

	res, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Errors[FieldEmail].Kind != KindCheckFailed {
		t.Fatalf("expected check failed, got %+v", res.Errors[FieldEmail])
	}
	snap := f.Snapshot()
	if snap.CheckingEmail || snap.State != StateEditing {
		t.Fatalf("expected checking cleared and editing, got %+v", snap)
	}
	if err := f.Set(FieldName, "Editable"); err != nil {
		t.Fatalf("expected form editable again, got %v", err)
	}
}

func TestFormSubmitCheckSurvivesCanceledContext(t *testing.T) {
	checker := deliverability.NewMockService()
	release := checker.Block()
	f := newTestForm(checker, NewMockProfileStore())
	fillValid(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan SubmitResult, 1)
	go func() {
		res, _ := f.Submit(ctx)
		done <- res
	}()
	waitFor(t, func() bool { return f.Snapshot().CheckingEmail })
	cancel()
	release()

	if res := <-done; !res.Submitted {
		t.Fatalf("expected the check to run to completion, got %+v", res)
	}
}

func TestFormAppendFailure(t *testing.T) {
	store := NewMockProfileStore()
	boom := errors.New("disk full")
	store.SetAppendError(boom)
	f := newTestForm(deliverability.NewMockService(), store)
	fillValid(t, f)

	if _, err := f.Submit(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected append error, got %v", err)
	}
	if snap := f.Snapshot(); snap.State != StateEditing {
		t.Fatalf("expected editing after a failed write, got %s", snap.State)
	}

	store.SetAppendError(nil)
	if res, err := f.Submit(context.Background()); err != nil || !res.Submitted {
		t.Fatalf("expected retry to succeed, got %+v err=%v", res, err)
	}
}

func TestFormLoadForEdit(t *testing.T) {
	ctx := context.Background()
	store := NewStore(kv.NewMemoryStore())
	original, err := store.Append(ctx, FromDraft(validDraft()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := newTestForm(deliverability.NewMockService(), store)
	if err := f.Load(ctx, original.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := f.Snapshot()
	if snap.EditingID != original.ID || snap.Draft != validDraft() {
		t.Fatalf("expected draft loaded from %s, got %+v", original.ID, snap)
	}

	_ = f.Set(FieldName, "Jane Corrected")
	res, err := f.Submit(ctx)
	if err != nil || !res.Submitted {
		t.Fatalf("expected submission, got %+v err=%v", res, err)
	}
	if res.Profile.ID == original.ID {
		t.Fatal("expected a new record, not an update")
	}
	all, _ := store.ReadAll(ctx)
	if len(all) != 2 || all[0].Name != "Jane Doe" || all[1].Name != "Jane Corrected" {
		t.Fatalf("expected original kept and correction appended, got %+v", all)
	}

	if err := NewForm(nil, store).Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFormSetManyAppliesTogether(t *testing.T) {
	f := newTestForm(deliverability.NewMockService(), NewMockProfileStore())
	before := f.Snapshot().UpdatedAt

	err := f.SetMany(
		FieldValue{Field: FieldName, Value: "Jane Doe"},
		FieldValue{Field: FieldDOB, Value: "02/06/2000"},
		FieldValue{Field: FieldPhone, Value: "012-345-6789"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := f.Snapshot()
	if d := snap.Draft; d.Name != "Jane Doe" || d.Age != "23" || d.Phone != "0123456789" {
		t.Fatalf("unexpected draft %+v", d)
	}
	if !snap.UpdatedAt.Equal(before) {
		t.Fatalf("expected the fixed clock time, got %v", snap.UpdatedAt)
	}
}

func TestFormSetManyUnknownFieldAppliesNothing(t *testing.T) {
	f := newTestForm(deliverability.NewMockService(), NewMockProfileStore())

	err := f.SetMany(
		FieldValue{Field: FieldName, Value: "Jane Doe"},
		FieldValue{Field: Field("nickname"), Value: "JD"},
	)
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if d := f.Snapshot().Draft; d.Name != "" {
		t.Fatalf("expected name untouched, got %q", d.Name)
	}
}

func TestFormSetManyWhileSubmittingAppliesNothing(t *testing.T) {
	checker := deliverability.NewMockService()
	release := checker.Block()
	defer release()
	f := newTestForm(checker, NewMockProfileStore())
	fillValid(t, f)

	go func() { _, _ = f.Submit(context.Background()) }()
	waitFor(t, f.Submitting)

	err := f.SetMany(
		FieldValue{Field: FieldName, Value: "Someone Else"},
		FieldValue{Field: FieldGender, Value: "Other"},
	)
	if !errors.Is(err, ErrFormLocked) {
		t.Fatalf("expected ErrFormLocked, got %v", err)
	}
	if d := f.Snapshot().Draft; d.Name != "Jane Doe" || d.Gender != "Female" {
		t.Fatalf("expected draft untouched, got %+v", d)
	}
	release()
	waitFor(t, func() bool { return !f.Submitting() })
}

func TestFormLoadClearedRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMockProfileStore()
	saved, err := store.Append(ctx, FromDraft(validDraft()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.Clear()
	if n := len(store.Profiles()); n != 0 {
		t.Fatalf("expected empty store, got %d", n)
	}

	f := newTestForm(deliverability.NewMockService(), store)
	if err := f.Load(ctx, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	next, err := store.Append(ctx, FromDraft(validDraft()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ID == saved.ID {
		t.Fatalf("expected a fresh id after clearing, got %q", next.ID)
	}
}
