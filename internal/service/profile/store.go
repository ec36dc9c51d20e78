package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/janisto/hive-profiles/internal/platform/kv"
	applog "github.com/janisto/hive-profiles/internal/platform/logging"
	"github.com/janisto/hive-profiles/internal/platform/metrics"
	"github.com/janisto/hive-profiles/internal/platform/timeutil"
)

// DefaultKey is the canonical key holding the profile collection.
const DefaultKey = "profiles"

// LegacyKeys are the keys earlier releases wrote the collection under.
// profileData holds a single record rather than a list.
var LegacyKeys = []string{"users", "userProfiles", "profileData"}

const auditResource = "profile"

var errMigrationSkipped = errors.New("canonical collection not empty")

// storedProfile is the persisted JSON shape of one record.
type storedProfile struct {
	ID      flexString `json:"id,omitempty"`
	Name    string     `json:"name"`
	Age     flexInt    `json:"age"`
	DOB     string     `json:"dob"`
	Email   string     `json:"email"`
	Phone   string     `json:"phone"`
	Gender  string     `json:"gender"`
	SavedAt *time.Time `json:"savedAt,omitempty"`
}

func toStored(p Profile) storedProfile {
	sp := storedProfile{
		ID:     flexString(p.ID),
		Name:   p.Name,
		Age:    flexInt(p.Age),
		DOB:    p.DOB,
		Email:  p.Email,
		Phone:  p.Phone,
		Gender: string(p.Gender),
	}
	if !p.SavedAt.IsZero() {
		t := p.SavedAt.UTC()
		sp.SavedAt = &t
	}
	return sp
}

func (sp storedProfile) profile() Profile {
	p := Profile{
		ID:     string(sp.ID),
		Name:   sp.Name,
		Age:    int(sp.Age),
		DOB:    sp.DOB,
		Email:  sp.Email,
		Phone:  sp.Phone,
		Gender: Gender(sp.Gender),
	}
	if sp.SavedAt != nil {
		p.SavedAt = *sp.SavedAt
	}
	return p
}

// flexInt decodes a JSON number or a numeric string. Earlier releases
// stored age as the text typed into the form.
type flexInt int

func (n flexInt) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(n), 10), nil
}

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		// Unreadable text reads as no age rather than failing the whole collection.
		v, _ := strconv.Atoi(strings.TrimSpace(s))
		*n = flexInt(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = flexInt(int(v))
	return nil
}

// flexString decodes a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
	default:
		var v json.Number
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v.String())
	}
	return nil
}

// Store is the append-only profile collection, kept as one JSON array
// under a single key.
type Store struct {
	backend kv.Store
	key     string
	clock   timeutil.Clock
	newID   func() string
	metrics *metrics.Metrics
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKey overrides DefaultKey.
func WithKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithStoreClock sets the clock used for SavedAt.
func WithStoreClock(c timeutil.Clock) StoreOption {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator replaces the UUID record IDs.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithStoreMetrics records appends and corrupt reads on m.
func WithStoreMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates a Store over backend.
func NewStore(backend kv.Store, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		key:     DefaultKey,
		clock:   timeutil.SystemClock,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the key the collection lives under.
func (s *Store) Key() string {
	return s.key
}

// Backend returns the underlying key-value store.
func (s *Store) Backend() kv.Store {
	return s.backend
}

// Append assigns p an ID and SavedAt, adds it to the end of the collection
// and writes the collection back as one value. The read-modify-write is
// atomic when the backend implements kv.Updater.
func (s *Store) Append(ctx context.Context, p Profile) (Profile, error) {
	p.ID = s.newID()
	p.SavedAt = s.clock().UTC()

	err := kv.Update(ctx, s.backend, s.key, func(current []byte, found bool) ([]byte, error) {
		list := s.decode(ctx, current, found)
		list = append(list, toStored(p))
		return json.Marshal(list)
	})
	if err != nil {
		applog.LogAuditEvent(ctx, "append", auditResource, p.ID, "failure", map[string]any{
			"key":   s.key,
			"error": categorizeError(err),
		})
		return Profile{}, fmt.Errorf("appending profile: %w", err)
	}

	s.metrics.IncProfilesAppended()
	applog.LogAuditEvent(ctx, "append", auditResource, p.ID, "success", map[string]any{"key": s.key})
	return p, nil
}

// ReadAll returns the collection in insertion order. A missing key or an
// unparseable value reads as empty. Backend failures are returned.
func (s *Store) ReadAll(ctx context.Context) ([]Profile, error) {
	data, err := s.backend.Get(ctx, s.key)
	found := true
	if errors.Is(err, kv.ErrNotFound) {
		found, err = false, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profiles: %w", err)
	}
	stored := s.decode(ctx, data, found)
	out := make([]Profile, 0, len(stored))
	for _, sp := range stored {
		out = append(out, sp.profile())
	}
	return out, nil
}

// ReadLatest returns the last record, or false when the collection is empty.
func (s *Store) ReadLatest(ctx context.Context) (Profile, bool, error) {
	all, err := s.ReadAll(ctx)
	if err != nil || len(all) == 0 {
		return Profile{}, false, err
	}
	return all[len(all)-1], true, nil
}

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Profile, error) {
	if id == "" {
		return Profile{}, ErrNotFound
	}
	all, err := s.ReadAll(ctx)
	if err != nil {
		return Profile{}, err
	}
	for _, p := range all {
		if p.ID == id {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

// MigrateLegacy copies records found under the legacy keys (LegacyKeys when
// none are given) into the canonical key, in key order. It does nothing when
// the canonical collection already has records, and never modifies the
// legacy keys. It returns the number of records imported.
func (s *Store) MigrateLegacy(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		keys = LegacyKeys
	}

	var imported []storedProfile
	for _, key := range keys {
		if key == s.key {
			continue
		}
		data, err := s.backend.Get(ctx, key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("reading legacy key %q: %w", key, err)
		}
		records, err := decodeLegacy(data)
		if err != nil {
			applog.LogWarn(ctx, "skipping unparseable legacy profiles", zap.String("key", key), zap.Error(err))
			s.metrics.IncStorageCorruptRead()
			continue
		}
		imported = append(imported, records...)
	}
	if len(imported) == 0 {
		return 0, nil
	}

	now := s.clock().UTC()
	for i := range imported {
		if imported[i].ID == "" {
			imported[i].ID = flexString(s.newID())
		}
		if imported[i].SavedAt == nil {
			imported[i].SavedAt = &now
		}
	}

	err := kv.Update(ctx, s.backend, s.key, func(current []byte, found bool) ([]byte, error) {
		if len(s.decode(ctx, current, found)) > 0 {
			return nil, errMigrationSkipped
		}
		return json.Marshal(imported)
	})
	if errors.Is(err, errMigrationSkipped) {
		applog.LogInfo(ctx, "legacy profile migration skipped", zap.String("key", s.key))
		return 0, nil
	}
	if err != nil {
		applog.LogAuditEvent(ctx, "migrate", auditResource, s.key, "failure", map[string]any{
			"error": categorizeError(err),
		})
		return 0, fmt.Errorf("migrating legacy profiles: %w", err)
	}

	applog.LogAuditEvent(ctx, "migrate", auditResource, s.key, "success", map[string]any{
		"sources": keys,
		"count":   len(imported),
	})
	return len(imported), nil
}

// decode parses the collection. Unparseable data is logged, counted and
// treated as empty.
func (s *Store) decode(ctx context.Context, data []byte, found bool) []storedProfile {
	if !found || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var list []storedProfile
	if err := json.Unmarshal(data, &list); err != nil {
		applog.LogWarn(ctx, "profile collection unparseable, treating as empty",
			zap.String("key", s.key),
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		s.metrics.IncStorageCorruptRead()
		return nil
	}
	return list
}

// decodeLegacy accepts a list of records or a single record object.
func decodeLegacy(data []byte) ([]storedProfile, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '{' {
		var one storedProfile
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, err
		}
		return []storedProfile{one}, nil
	}
	var list []storedProfile
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// categorizeError converts errors to audit-safe categories.
func categorizeError(err error) string {
	switch {
	case errors.Is(err, kv.ErrConflict):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal_error"
	}
}
