package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pldft/internal/sanctions/models"
	dErrors "pldft/pkg/domain-errors"
	"pldft/pkg/platform/sentinel"
)

const defaultMemoryTxTimeout = 30 * time.Second

type sourceKey struct {
	source string
	dataID string
}

// memState is one immutable snapshot once committed. Transactions work on a
// clone and swap it in on success.
type memState struct {
	nextID   int64
	records  map[int64]*models.SanctionRecord
	byKey    map[sourceKey]int64
	profiles map[uuid.UUID]*models.IdentityProfile
	now      func() time.Time
}

func newMemState(now func() time.Time) *memState {
	return &memState{
		nextID:   1,
		records:  make(map[int64]*models.SanctionRecord),
		byKey:    make(map[sourceKey]int64),
		profiles: make(map[uuid.UUID]*models.IdentityProfile),
		now:      now,
	}
}

// clone copies the maps and the structs they point to. Slices inside records
// are shared; every mutation replaces them instead of editing in place.
func (st *memState) clone() *memState {
	out := &memState{
		nextID:   st.nextID,
		records:  make(map[int64]*models.SanctionRecord, len(st.records)),
		byKey:    make(map[sourceKey]int64, len(st.byKey)),
		profiles: make(map[uuid.UUID]*models.IdentityProfile, len(st.profiles)),
		now:      st.now,
	}
	for id, rec := range st.records {
		cp := *rec
		out.records[id] = &cp
	}
	for k, id := range st.byKey {
		out.byKey[k] = id
	}
	for id, p := range st.profiles {
		cp := *p
		out.profiles[id] = &cp
	}
	return out
}

// InMemoryStore keeps records in process memory. Transactions are serialized
// and copy-on-write, so a failed callback leaves no trace.
type InMemoryStore struct {
	writeMu   sync.Mutex
	mu        sync.RWMutex
	state     *memState
	txTimeout time.Duration
}

type MemoryOption func(*InMemoryStore)

// WithClock overrides the timestamp source for created_at/updated_at.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		if now != nil {
			s.state.now = now
		}
	}
}

// WithMemoryTxTimeout bounds RunInTx when the caller's context has no
// deadline.
func WithMemoryTxTimeout(d time.Duration) MemoryOption {
	return func(s *InMemoryStore) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		state:     newMemState(func() time.Time { return time.Now().UTC() }),
		txTimeout: defaultMemoryTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx runs fn against a private copy of the store and publishes the copy
// only if fn succeeds. lockKey is accepted for parity with the PostgreSQL
// store; in memory every transaction is already exclusive.
func (s *InMemoryStore) RunInTx(ctx context.Context, _ string, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	if err := fn(&memoryTx{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted before commit")
	}

	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

// SetEmbedding stores the vector for one record outside any transaction.
func (s *InMemoryStore) SetEmbedding(_ context.Context, id int64, embedding []float32) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.state.records[id]
	if !ok {
		return fmt.Errorf("record %d: %w", id, sentinel.ErrNotFound)
	}
	cp := *rec
	cp.Embedding = append([]float32(nil), embedding...)
	cp.HasEmbedding = len(embedding) > 0
	s.state.records[id] = &cp
	return nil
}

// Readers below hold the read lock for the whole query so SetEmbedding cannot
// swap a record underneath them.

func (s *InMemoryStore) Get(ctx context.Context, id int64) (*models.SanctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.get(ctx, id)
}

func (s *InMemoryStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.IdentityProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getProfile(ctx, id)
}

func (s *InMemoryStore) CountBySource(ctx context.Context, source string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.countBySource(ctx, source)
}

func (s *InMemoryStore) SearchExact(ctx context.Context, query string, limit int) ([]models.SanctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.searchExact(ctx, query, limit)
}

func (s *InMemoryStore) SearchFuzzy(ctx context.Context, query string, threshold float64, limit int) ([]models.ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.searchFuzzy(ctx, query, threshold, limit)
}

func (s *InMemoryStore) SearchVector(ctx context.Context, embedding []float32, limit int) ([]models.ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.searchVector(ctx, embedding, limit)
}

func (s *InMemoryStore) ListByProfiles(ctx context.Context, profileIDs []uuid.UUID) ([]models.SanctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listByProfiles(ctx, profileIDs)
}

func (s *InMemoryStore) ListUnassigned(ctx context.Context, limit int) ([]models.SanctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listUnassigned(ctx, limit)
}

func (s *InMemoryStore) ListMissingEmbeddings(ctx context.Context, limit int) ([]models.SanctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listMissingEmbeddings(ctx, limit)
}

// memoryTx exposes a working copy. It is confined to the goroutine running
// the RunInTx callback.
type memoryTx struct {
	state *memState
}

func (t *memoryTx) Get(ctx context.Context, id int64) (*models.SanctionRecord, error) {
	return t.state.get(ctx, id)
}

func (t *memoryTx) GetProfile(ctx context.Context, id uuid.UUID) (*models.IdentityProfile, error) {
	return t.state.getProfile(ctx, id)
}

func (t *memoryTx) CountBySource(ctx context.Context, source string) (int, error) {
	return t.state.countBySource(ctx, source)
}

func (t *memoryTx) SearchExact(ctx context.Context, query string, limit int) ([]models.SanctionRecord, error) {
	return t.state.searchExact(ctx, query, limit)
}

func (t *memoryTx) SearchFuzzy(ctx context.Context, query string, threshold float64, limit int) ([]models.ScoredRecord, error) {
	return t.state.searchFuzzy(ctx, query, threshold, limit)
}

func (t *memoryTx) SearchVector(ctx context.Context, embedding []float32, limit int) ([]models.ScoredRecord, error) {
	return t.state.searchVector(ctx, embedding, limit)
}

func (t *memoryTx) ListByProfiles(ctx context.Context, profileIDs []uuid.UUID) ([]models.SanctionRecord, error) {
	return t.state.listByProfiles(ctx, profileIDs)
}

func (t *memoryTx) ListUnassigned(ctx context.Context, limit int) ([]models.SanctionRecord, error) {
	return t.state.listUnassigned(ctx, limit)
}

func (t *memoryTx) ListMissingEmbeddings(ctx context.Context, limit int) ([]models.SanctionRecord, error) {
	return t.state.listMissingEmbeddings(ctx, limit)
}

func (t *memoryTx) ListDataIDs(_ context.Context, source string) ([]string, error) {
	out := make([]string, 0)
	for k := range t.state.byKey {
		if k.source == source {
			out = append(out, k.dataID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *memoryTx) Upsert(_ context.Context, rec models.CanonicalRecord) (bool, error) {
	if rec.Source == "" || rec.DataID == "" {
		return false, fmt.Errorf("upsert %s/%s: %w", rec.Source, rec.DataID, sentinel.ErrInvalidState)
	}
	st := t.state
	now := st.now()
	key := sourceKey{source: rec.Source, dataID: rec.DataID}
	if id, ok := st.byKey[key]; ok {
		cp := *st.records[id]
		cp.CanonicalRecord = rec
		cp.UpdatedAt = now
		st.records[id] = &cp
		return false, nil
	}
	id := st.nextID
	st.nextID++
	st.records[id] = &models.SanctionRecord{
		CanonicalRecord: rec,
		ID:              id,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	st.byKey[key] = id
	return true, nil
}

func (t *memoryTx) DeleteByDataIDs(_ context.Context, source string, dataIDs []string) (int, error) {
	st := t.state
	deleted := 0
	for _, dataID := range dataIDs {
		key := sourceKey{source: source, dataID: dataID}
		id, ok := st.byKey[key]
		if !ok {
			continue
		}
		delete(st.byKey, key)
		delete(st.records, id)
		deleted++
	}
	return deleted, nil
}

func (t *memoryTx) SharedStrongKeys(_ context.Context) ([]string, error) {
	counts := make(map[string]int)
	for _, rec := range t.state.records {
		if rec.StrongKey != "" {
			counts[rec.StrongKey]++
		}
	}
	out := make([]string, 0)
	for key, n := range counts {
		if n > 1 {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *memoryTx) ListByStrongKey(_ context.Context, key string) ([]models.SanctionRecord, error) {
	out := make([]models.SanctionRecord, 0)
	if key == "" {
		return out, nil
	}
	for _, rec := range t.state.records {
		if rec.StrongKey == key {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memoryTx) CreateProfile(_ context.Context, profile models.IdentityProfile) error {
	if _, exists := t.state.profiles[profile.ID]; exists {
		return fmt.Errorf("profile %s: %w", profile.ID, sentinel.ErrConflict)
	}
	now := t.state.now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = profile.CreatedAt
	}
	t.state.profiles[profile.ID] = &profile
	return nil
}

func (t *memoryTx) AssignProfile(_ context.Context, profileID uuid.UUID, recordIDs []int64) (int, error) {
	if _, ok := t.state.profiles[profileID]; !ok {
		return 0, fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
	}
	assigned := 0
	for _, id := range recordIDs {
		rec, ok := t.state.records[id]
		if !ok || rec.ProfileID != nil {
			continue
		}
		cp := *rec
		pid := profileID
		cp.ProfileID = &pid
		t.state.records[id] = &cp
		assigned++
	}
	return assigned, nil
}

func (t *memoryTx) TouchProfile(_ context.Context, profileID uuid.UUID) error {
	p, ok := t.state.profiles[profileID]
	if !ok {
		return fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
	}
	cp := *p
	cp.UpdatedAt = t.state.now()
	t.state.profiles[profileID] = &cp
	return nil
}

func (st *memState) get(_ context.Context, id int64) (*models.SanctionRecord, error) {
	rec, ok := st.records[id]
	if !ok {
		return nil, fmt.Errorf("record %d: %w", id, sentinel.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (st *memState) getProfile(_ context.Context, id uuid.UUID) (*models.IdentityProfile, error) {
	p, ok := st.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (st *memState) countBySource(_ context.Context, source string) (int, error) {
	n := 0
	for k := range st.byKey {
		if k.source == source {
			n++
		}
	}
	return n, nil
}

// sortedRecords returns the records ordered by id.
func (st *memState) sortedRecords() []*models.SanctionRecord {
	out := make([]*models.SanctionRecord, 0, len(st.records))
	for _, rec := range st.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (st *memState) searchExact(_ context.Context, query string, limit int) ([]models.SanctionRecord, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.SanctionRecord, 0)
	if needle == "" {
		return out, nil
	}
	for _, rec := range st.sortedRecords() {
		if limit > 0 && len(out) >= limit {
			break
		}
		if containsFold(rec.EntityName, needle) || aliasMatches(rec.Aliases, needle) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}

func aliasMatches(aliases []models.Alias, lowerNeedle string) bool {
	for _, a := range aliases {
		if containsFold(a.Name, lowerNeedle) {
			return true
		}
	}
	return false
}

func (st *memState) searchFuzzy(_ context.Context, query string, threshold float64, limit int) ([]models.ScoredRecord, error) {
	out := make([]models.ScoredRecord, 0)
	for _, rec := range st.sortedRecords() {
		sim := trigramSimilarity(rec.EntityName, query)
		if sim > threshold {
			out = append(out, models.ScoredRecord{Record: *rec, Score: sim})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (st *memState) searchVector(_ context.Context, embedding []float32, limit int) ([]models.ScoredRecord, error) {
	out := make([]models.ScoredRecord, 0)
	for _, rec := range st.sortedRecords() {
		if !rec.HasEmbedding {
			continue
		}
		d, ok := cosineDistance(rec.Embedding, embedding)
		if !ok {
			continue
		}
		out = append(out, models.ScoredRecord{Record: *rec, Score: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (st *memState) listByProfiles(_ context.Context, profileIDs []uuid.UUID) ([]models.SanctionRecord, error) {
	want := make(map[uuid.UUID]struct{}, len(profileIDs))
	for _, id := range profileIDs {
		want[id] = struct{}{}
	}
	out := make([]models.SanctionRecord, 0)
	for _, rec := range st.sortedRecords() {
		if rec.ProfileID == nil {
			continue
		}
		if _, ok := want[*rec.ProfileID]; ok {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (st *memState) listUnassigned(_ context.Context, limit int) ([]models.SanctionRecord, error) {
	return st.filter(limit, func(rec *models.SanctionRecord) bool { return rec.ProfileID == nil }), nil
}

func (st *memState) listMissingEmbeddings(_ context.Context, limit int) ([]models.SanctionRecord, error) {
	return st.filter(limit, func(rec *models.SanctionRecord) bool { return !rec.HasEmbedding }), nil
}

func (st *memState) filter(limit int, keep func(*models.SanctionRecord) bool) []models.SanctionRecord {
	out := make([]models.SanctionRecord, 0)
	for _, rec := range st.sortedRecords() {
		if limit > 0 && len(out) >= limit {
			break
		}
		if keep(rec) {
			out = append(out, *rec)
		}
	}
	return out
}
