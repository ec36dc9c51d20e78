package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/janisto/hive-profiles/internal/platform/kv"
	"github.com/janisto/hive-profiles/internal/platform/metrics"
	"github.com/janisto/hive-profiles/internal/platform/timeutil"
)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(backend kv.Store, opts ...StoreOption) *Store {
	opts = append([]StoreOption{
		WithIDGenerator(sequentialIDs()),
		WithStoreClock(timeutil.Fixed(testNow)),
	}, opts...)
	return NewStore(backend, opts...)
}

func sampleProfile(name string) Profile {
	return Profile{Name: name, Age: 23, DOB: "02/06/2000", Email: "jane@example.com", Phone: "0123456789", Gender: GenderFemale}
}

// failingStore fails every call with err.
type failingStore struct {
	err error
}

func (f failingStore) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingStore) Set(context.Context, string, []byte) error  { return f.err }

// setFailStore reads through to a memory store but rejects writes.
type setFailStore struct {
	mem *kv.MemoryStore
}

func (s setFailStore) Get(ctx context.Context, key string) ([]byte, error) { return s.mem.Get(ctx, key) }
func (s setFailStore) Set(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func TestStoreAppendThenReadLatest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(kv.NewMemoryStore())

	saved, err := store.Append(ctx, sampleProfile("Jane Doe"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != "id-1" || !saved.SavedAt.Equal(testNow) {
		t.Fatalf("expected ID and SavedAt assigned, got %+v", saved)
	}

	latest, ok, err := store.ReadLatest(ctx)
	if err != nil || !ok {
		t.Fatalf("expected a latest profile, ok=%v err=%v", ok, err)
	}
	if latest.ID != saved.ID || latest.Name != saved.Name || !latest.SavedAt.Equal(saved.SavedAt) {
		t.Fatalf("expected %+v, got %+v", saved, latest)
	}
}

func TestStoreAppendPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(kv.NewMemoryStore())

	for _, name := range []string{"First", "Second", "First"} {
		if _, err := store.Append(ctx, sampleProfile(name)); err != nil {
			t.Fatalf("append %s: %v", name, err)
		}
	}
	all, err := store.ReadAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 || all[0].Name != "First" || all[1].Name != "Second" || all[2].Name != "First" {
		t.Fatalf("unexpected order %+v", all)
	}
}

func TestStoreReadEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(kv.NewMemoryStore())

	all, err := store.ReadAll(ctx)
	if err != nil || all == nil || len(all) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v err=%v", all, err)
	}
	if _, ok, err := store.ReadLatest(ctx); ok || err != nil {
		t.Fatalf("expected no latest profile, ok=%v err=%v", ok, err)
	}
}

func TestStoreCorruptDataReadsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryStore()
	_ = backend.Set(ctx, DefaultKey, []byte(`{not json`))
	m := metrics.New()
	store := newTestStore(backend, WithStoreMetrics(m))

	all, err := store.ReadAll(ctx)
	if err != nil || len(all) != 0 {
		t.Fatalf("expected empty collection, got %v err=%v", all, err)
	}
	if got := testutil.ToFloat64(m.StorageCorruptRead); got != 1 {
		t.Fatalf("expected corrupt read counted, got %v", got)
	}

	if _, err := store.Append(ctx, sampleProfile("Jane Doe")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all, _ = store.ReadAll(ctx)
	if len(all) != 1 {
		t.Fatalf("expected append over corrupt data to start fresh, got %d", len(all))
	}
	if got := testutil.ToFloat64(m.ProfilesAppended); got != 1 {
		t.Fatalf("expected append counted, got %v", got)
	}
}

func TestStoreBackendReadError(t *testing.T) {
	boom := errors.New("backend unavailable")
	store := newTestStore(failingStore{err: boom})

	if _, err := store.ReadAll(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if _, err := store.Append(context.Background(), sampleProfile("Jane")); !errors.Is(err, boom) {
		t.Fatalf("expected backend error on append, got %v", err)
	}
}

func TestStoreWriteFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(setFailStore{kv.NewMemoryStore()})

	if _, err := store.Append(ctx, sampleProfile("Jane")); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected write failure, got %v", err)
	}
}

func TestStorePersistedShape(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryStore()
	store := newTestStore(backend, WithKey("custom"))

	if _, err := store.Append(ctx, sampleProfile("Jane Doe")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := backend.Get(ctx, "custom")
	if err != nil {
		t.Fatalf("expected collection under custom key: %v", err)
	}
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("expected a JSON array: %v", err)
	}
	r := records[0]
	if r["id"] != "id-1" || r["name"] != "Jane Doe" || r["age"] != float64(23) || r["dob"] != "02/06/2000" {
		t.Fatalf("unexpected record %v", r)
	}
	if r["gender"] != "Female" || r["savedAt"] == nil {
		t.Fatalf("unexpected record %v", r)
	}
}

func TestStoreDecodesLegacyShapes(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryStore()
	_ = backend.Set(ctx, DefaultKey, []byte(`[
		{"name":"Old","age":"41","dob":"01/01/1983","email":"old@example.com","phone":"0123456789","gender":"Male"},
		{"id":7,"name":"Numbered","age":30,"dob":"01/01/1994","email":"n@example.com","phone":"0123456789","gender":"Other"},
		{"name":"Blank","age":"","dob":"","email":"","phone":"","gender":""}
	]`))
	store := newTestStore(backend)

	all, err := store.ReadAll(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 records, got %d err=%v", len(all), err)
	}
	if all[0].Age != 41 || all[0].ID != "" {
		t.Fatalf("expected string age decoded, got %+v", all[0])
	}
	if all[1].ID != "7" || all[1].Age != 30 {
		t.Fatalf("expected numeric id decoded, got %+v", all[1])
	}
	if all[2].Age != 0 {
		t.Fatalf("expected blank age to read as 0, got %d", all[2].Age)
	}
}

func TestStoreGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(kv.NewMemoryStore())
	_, _ = store.Append(ctx, sampleProfile("First"))
	second, _ := store.Append(ctx, sampleProfile("Second"))

	got, err := store.Get(ctx, second.ID)
	if err != nil || got.Name != "Second" {
		t.Fatalf("expected Second, got %+v err=%v", got, err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty id, got %v", err)
	}
}

func TestStoreConcurrentAppendsAreNotLost(t *testing.T) {
	ctx := context.Background()
	store := NewStore(kv.NewMemoryStore())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			if _, err := store.Append(ctx, sampleProfile(fmt.Sprintf("user-%d", i))); err != nil {
				t.Errorf("append: %v", err)
			}
		})
	}
	wg.Wait()

	all, _ := store.ReadAll(ctx)
	if len(all) != 20 {
		t.Fatalf("expected 20 records, got %d", len(all))
	}
}

func TestMigrateLegacy(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryStore()
	_ = backend.Set(ctx, "users", []byte(`[{"name":"From Users","age":"30","dob":"01/01/1994"}]`))
	_ = backend.Set(ctx, "userProfiles", []byte(`[{"name":"From Profiles","age":31},{"name":"Second","age":32}]`))
	_ = backend.Set(ctx, "profileData", []byte(`{"name":"Singular","age":"33"}`))
	store := newTestStore(backend)

	n, err := store.MigrateLegacy(ctx)
	if err != nil || n != 4 {
		t.Fatalf("expected 4 imported, got %d err=%v", n, err)
	}
	all, _ := store.ReadAll(ctx)
	names := make([]string, 0, len(all))
	for _, p := range all {
		names = append(names, p.Name)
		if p.ID == "" || p.SavedAt.IsZero() {
			t.Fatalf("expected migrated record to get ID and SavedAt, got %+v", p)
		}
	}
	if strings.Join(names, ",") != "From Users,From Profiles,Second,Singular" {
		t.Fatalf("unexpected order %v", names)
	}
	if _, err := backend.Get(ctx, "users"); err != nil {
		t.Fatalf("expected legacy key kept, got %v", err)
	}

	n, err = store.MigrateLegacy(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected second migration to be skipped, got %d err=%v", n, err)
	}
	if all, _ := store.ReadAll(ctx); len(all) != 4 {
		t.Fatalf("expected no duplicates, got %d", len(all))
	}
}

func TestMigrateLegacySkipsCorruptKey(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryStore()
	_ = backend.Set(ctx, "users", []byte(`garbage`))
	_ = backend.Set(ctx, "userProfiles", []byte(`[{"name":"Kept","age":30}]`))
	store := newTestStore(backend)

	n, err := store.MigrateLegacy(ctx, "users", "userProfiles")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 imported, got %d err=%v", n, err)
	}
}

func TestMigrateLegacyNothingToImport(t *testing.T) {
	store := newTestStore(kv.NewMemoryStore())
	n, err := store.MigrateLegacy(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected nothing imported, got %d err=%v", n, err)
	}
}

func TestMigrateLegacyKeepsExistingCollection(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryStore()
	_ = backend.Set(ctx, "users", []byte(`[{"name":"Legacy"}]`))
	store := newTestStore(backend)
	_, _ = store.Append(ctx, sampleProfile("Current"))

	n, err := store.MigrateLegacy(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected migration skipped, got %d err=%v", n, err)
	}
	all, _ := store.ReadAll(ctx)
	if len(all) != 1 || all[0].Name != "Current" {
		t.Fatalf("expected existing collection untouched, got %+v", all)
	}
}

func TestFlexIntMarshal(t *testing.T) {
	b, err := json.Marshal(flexInt(42))
	if err != nil || string(b) != "42" {
		t.Fatalf("unexpected %s err=%v", b, err)
	}
	var n flexInt
	if err := json.Unmarshal([]byte(`null`), &n); err != nil || n != 0 {
		t.Fatalf("expected null to read as 0, got %d err=%v", n, err)
	}
	if err := json.Unmarshal([]byte(`true`), &n); err == nil {
		t.Fatal("expected a bool age to fail")
	}
}

func TestCategorizeError(t *testing.T) {
	if categorizeError(kv.ErrConflict) != "conflict" {
		t.Fatal("expected conflict")
	}
	if categorizeError(context.DeadlineExceeded) != "canceled" {
		t.Fatal("expected canceled")
	}
	if categorizeError(errors.New("x")) != "internal_error" {
		t.Fatal("expected internal_error")
	}
}
