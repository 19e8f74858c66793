package progress

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/windfall/cicero/internal/analysis"
	"github.com/windfall/cicero/internal/catalog"
	"github.com/windfall/cicero/internal/errors"
)

// recordKeyPrefix namespaces the persisted session records.
const recordKeyPrefix = "cicero_session:"

// KV is the synchronous key/value collaborator backing the store. Get reports
// absence through its second return, not an error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Store reads and writes whole UserProgress records.
type Store struct {
	kv  KV
	log zerolog.Logger
}

// NewStore creates a progress store on top of a key/value collaborator.
func NewStore(kv KV, log zerolog.Logger) *Store {
	return &Store{kv: kv, log: log}
}

func recordKey(profile string) string {
	return recordKeyPrefix + profile
}

// Load reads the whole record for a profile. Absence is not an error.
func (s *Store) Load(ctx context.Context, profile string) (UserProgress, bool, error) {
	data, ok, err := s.kv.Get(ctx, recordKey(profile))
	if err != nil {
		return UserProgress{}, false, errors.Wrap(errors.ErrStorageService, "failed to load progress record", err)
	}
	if !ok {
		return UserProgress{}, false, nil
	}
	var rec UserProgress
	if err := json.Unmarshal(data, &rec); err != nil {
		return UserProgress{}, false, errors.Wrap(errors.ErrStorageService, "progress record is corrupt", err)
	}
	return rec, true, nil
}

// Save writes the complete record. Write failures surface to the caller.
func (s *Store) Save(ctx context.Context, rec UserProgress) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(errors.ErrStorageService, "failed to encode progress record", err)
	}
	if err := s.kv.Set(ctx, recordKey(rec.Name), data); err != nil {
		return errors.Wrap(errors.ErrStorageService, "failed to save progress record", err)
	}
	return nil
}

// Create initializes and persists a new profile record. An existing record is
// a conflict: the display name is immutable after account creation.
func (s *Store) Create(ctx context.Context, name string, lang catalog.Language) (UserProgress, error) {
	_, ok, err := s.Load(ctx, name)
	if err != nil {
		return UserProgress{}, err
	}
	if ok {
		return UserProgress{}, errors.New(errors.ErrConflict, "profile already exists")
	}
	rec := NewUserProgress(name, lang)
	if err := s.Save(ctx, rec); err != nil {
		return UserProgress{}, err
	}
	s.log.Info().Str("profile", name).Str("language", string(lang)).Msg("Profile created")
	return rec, nil
}

// AppendResult folds one analysis result into the record as a single combined
// mutation: prepend to history, bump the completion counter and recompute the
// aggregate score, then save once. No reader observes a partial update.
func (s *Store) AppendResult(ctx context.Context, profile string, res analysis.Result) (UserProgress, error) {
	rec, ok, err := s.Load(ctx, profile)
	if err != nil {
		return UserProgress{}, err
	}
	if !ok {
		return UserProgress{}, errors.NotFound("profile")
	}
	next := rec.withResult(res)
	if err := s.Save(ctx, next); err != nil {
		return UserProgress{}, err
	}
	s.log.Info().
		Str("profile", profile).
		Float64("result_score", res.Score).
		Int("aggregate_score", next.Score).
		Int("completed", next.ExercisesCompleted).
		Msg("Analysis result appended")
	return next, nil
}

// SetLanguage persists a new preferred language immediately. Score, history
// and streak are untouched.
func (s *Store) SetLanguage(ctx context.Context, profile string, lang catalog.Language) (UserProgress, error) {
	rec, ok, err := s.Load(ctx, profile)
	if err != nil {
		return UserProgress{}, err
	}
	if !ok {
		return UserProgress{}, errors.NotFound("profile")
	}
	next := rec
	next.PreferredLanguage = lang
	if err := s.Save(ctx, next); err != nil {
		return UserProgress{}, err
	}
	return next, nil
}

// Delete removes a profile record (sign-out).
func (s *Store) Delete(ctx context.Context, profile string) error {
	if err := s.kv.Del(ctx, recordKey(profile)); err != nil {
		return errors.Wrap(errors.ErrStorageService, "failed to delete progress record", err)
	}
	return nil
}

// MemoryKV is an in-process KV used in tests and as a fallback when no Redis
// is configured.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(value))
	copy(out, value)
	m.data[key] = out
	return nil
}

func (m *MemoryKV) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
