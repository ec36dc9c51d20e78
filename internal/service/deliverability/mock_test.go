package deliverability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockServiceDefaultsToDeliverable(t *testing.T) {
	m := NewMockService()
	v, err := m.Check(context.Background(), "anyone@example.com")
	if err != nil || v != Deliverable {
		t.Fatalf("expected deliverable, got %s err=%v", v, err)
	}
}

func TestMockServiceVerdictIsCaseInsensitive(t *testing.T) {
	m := NewMockService()
	m.SetVerdict("Ghost@Example.com", Undeliverable)
	v, _ := m.Check(context.Background(), "ghost@example.com")
	if v != Undeliverable {
		t.Fatalf("expected undeliverable, got %s", v)
	}
}

func TestMockServiceError(t *testing.T) {
	m := NewMockService()
	boom := errors.New("boom")
	m.SetError("jane@example.com", boom)
	v, err := m.Check(context.Background(), "jane@example.com")
	if v != CheckFailed || !errors.Is(err, boom) {
		t.Fatalf("expected check_failed with boom, got %s err=%v", v, err)
	}
	if calls := m.Calls(); len(calls) != 1 || calls[0] != "jane@example.com" {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestMockServiceBlockAndRelease(t *testing.T) {
	m := NewMockService()
	release := m.Block()

	done := make(chan Verdict, 1)
	go func() {
		v, _ := m.Check(context.Background(), "jane@example.com")
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("expected Check to block")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	release()
	if v := <-done; v != Deliverable {
		t.Fatalf("expected deliverable after release, got %s", v)
	}
}

func TestMockServiceBlockHonorsContext(t *testing.T) {
	m := NewMockService()
	defer m.Block()()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v, err := m.Check(ctx, "jane@example.com")
	if v != CheckFailed || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %s err=%v", v, err)
	}
}
