package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"timekeeper/internal/domain"
)

// fakeStore is an in-memory stand-in for the SQLite repository, shared by
// the service tests
type fakeStore struct {
	mu sync.Mutex

	corrections map[string]domain.AICorrection
	effects     map[string]domain.QueuedEffect
	executed    map[string]bool
	fences      map[string]domain.GeofenceLocation
	sessions    map[string]domain.WorkSession
	summaries   map[string]domain.DaySummary
	syncStates  map[string]domain.SyncState
	tracking    map[string]domain.ActiveTracking

	summarySaves int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		corrections: make(map[string]domain.AICorrection),
		effects:     make(map[string]domain.QueuedEffect),
		executed:    make(map[string]bool),
		fences:      make(map[string]domain.GeofenceLocation),
		sessions:    make(map[string]domain.WorkSession),
		summaries:   make(map[string]domain.DaySummary),
		syncStates:  make(map[string]domain.SyncState),
		tracking:    make(map[string]domain.ActiveTracking),
	}
}

// TrackingStore

func (f *fakeStore) GetActiveTracking(_ context.Context, userID string) (*domain.ActiveTracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tracking[userID]; ok {
		return &t, nil
	}
	return &domain.ActiveTracking{Status: domain.StatusIdle, UserID: userID}, nil
}

func (f *fakeStore) ListActiveTracking(_ context.Context) ([]domain.ActiveTracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []domain.ActiveTracking
	for _, t := range f.tracking {
		if t.Status != domain.StatusIdle {
			rows = append(rows, t)
		}
	}
	return rows, nil
}

func (f *fakeStore) SaveActiveTracking(_ context.Context, t domain.ActiveTracking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracking[t.UserID] = t
	return nil
}

// SessionStore

func (f *fakeStore) GetSession(_ context.Context, id string) (*domain.WorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		return &s, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (f *fakeStore) ListSessionsByDay(_ context.Context, userID, date string) ([]domain.WorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WorkSession
	for _, s := range f.sessions {
		if s.UserID == userID && domain.DayOf(s.EnterAt) == date && !s.Deleted() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnterAt.Before(out[j].EnterAt) })
	return out, nil
}

func (f *fakeStore) ListOpenSessions(_ context.Context) ([]domain.WorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WorkSession
	for _, s := range f.sessions {
		if s.Open() && !s.Deleted() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDirtySessions(_ context.Context, userID string) ([]domain.WorkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WorkSession
	for _, s := range f.sessions {
		if s.UserID == userID && s.Dirty() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s domain.WorkSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) UpdateSession(_ context.Context, s domain.WorkSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) SoftDeleteSession(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.DeletedAt = &at
	s.UpdatedAt = at
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) MarkSessionsSynced(_ context.Context, ids []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if s, ok := f.sessions[id]; ok {
			syncedAt := at
			s.SyncedAt = &syncedAt
			f.sessions[id] = s
		}
	}
	return nil
}

// SummaryStore

func (f *fakeStore) GetDaySummary(_ context.Context, userID, date string) (*domain.DaySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.summaries[userID+"/"+date]; ok {
		return &s, nil
	}
	return nil, domain.ErrSummaryNotFound
}

func (f *fakeStore) SaveDaySummary(_ context.Context, s domain.DaySummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[s.UserID+"/"+s.Date] = s
	f.summarySaves++
	return nil
}

func (f *fakeStore) ListRecentSummaries(_ context.Context, userID, beforeDate string, limit int) ([]domain.DaySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DaySummary
	for _, s := range f.summaries {
		if s.UserID == userID && s.Date < beforeDate {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListDirtySummaries(_ context.Context, userID string) ([]domain.DaySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DaySummary
	for _, s := range f.summaries {
		if s.UserID == userID && s.Dirty() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *fakeStore) MarkSummariesSynced(_ context.Context, userID string, dates []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, date := range dates {
		if s, ok := f.summaries[userID+"/"+date]; ok {
			syncedAt := at
			s.SyncedAt = &syncedAt
			f.summaries[userID+"/"+date] = s
		}
	}
	return nil
}

// FenceStore

func (f *fakeStore) GetFence(_ context.Context, userID, fenceID string) (*domain.GeofenceLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fence, ok := f.fences[fenceID]; ok && fence.UserID == userID {
		return &fence, nil
	}
	return nil, domain.ErrUnknownFence
}

func (f *fakeStore) ListFences(_ context.Context, userID string) ([]domain.GeofenceLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GeofenceLocation
	for _, fence := range f.fences {
		if fence.UserID == userID {
			out = append(out, fence)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveFence(_ context.Context, fence domain.GeofenceLocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fences[fence.ID] = fence
	return nil
}

// CorrectionStore

func (f *fakeStore) AppendCorrection(_ context.Context, c domain.AICorrection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corrections[c.ID] = c
	return nil
}

func (f *fakeStore) GetCorrection(_ context.Context, id string) (*domain.AICorrection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.corrections[id]; ok {
		return &c, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (f *fakeStore) ListCorrectionsBySession(_ context.Context, sessionID string) ([]domain.AICorrection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AICorrection
	for _, c := range f.corrections {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ListCorrectionsByDate(_ context.Context, userID, date string) ([]domain.AICorrection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AICorrection
	for _, c := range f.corrections {
		if c.UserID == userID && c.Date == date {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) HasActiveCorrection(_ context.Context, userID, date string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.corrections {
		if c.UserID == userID && c.Date == date && !c.Reverted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MarkCorrectionReverted(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.corrections[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	c.Reverted = true
	f.corrections[id] = c
	return nil
}

// EffectQueue

func (f *fakeStore) EnqueueEffect(_ context.Context, e domain.QueuedEffect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.effects {
		if existing.Status == domain.EffectPending && existing.DedupKey == e.DedupKey {
			return nil
		}
	}
	f.effects[e.ID] = e
	return nil
}

func (f *fakeStore) DueEffects(_ context.Context, lane domain.EffectPriority, now time.Time, limit int) ([]domain.QueuedEffect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.QueuedEffect
	for _, e := range f.effects {
		if e.Status == domain.EffectPending && e.Priority == lane && !e.NextRunAt.After(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) MarkEffectDone(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.effects[id]
	e.Status = domain.EffectDone
	f.effects[id] = e
	f.executed[e.DedupKey] = true
	return nil
}

func (f *fakeStore) MarkEffectFailed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.effects[id]
	e.Status = domain.EffectFailed
	f.effects[id] = e
	return nil
}

func (f *fakeStore) RescheduleEffect(_ context.Context, id string, retryCount int, nextRunAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.effects[id]
	e.RetryCount = retryCount
	e.NextRunAt = nextRunAt
	f.effects[id] = e
	return nil
}

func (f *fakeStore) EffectExecuted(_ context.Context, dedupKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executed[dedupKey], nil
}

func (f *fakeStore) ListFailedEffects(_ context.Context) ([]domain.QueuedEffect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.QueuedEffect
	for _, e := range f.effects {
		if e.Status == domain.EffectFailed {
			out = append(out, e)
		}
	}
	return out, nil
}

// SyncStateStore

func (f *fakeStore) GetSyncState(_ context.Context, userID string) (*domain.SyncState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.syncStates[userID]; ok {
		return &s, nil
	}
	return &domain.SyncState{UserID: userID}, nil
}

func (f *fakeStore) SaveSyncState(_ context.Context, s domain.SyncState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncStates[s.UserID] = s
	return nil
}

// helpers

func (f *fakeStore) session(id string) domain.WorkSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id]
}

func (f *fakeStore) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeStore) pendingEffects(effectType domain.EffectType) []domain.QueuedEffect {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.QueuedEffect
	for _, e := range f.effects {
		if e.Type == effectType && e.Status == domain.EffectPending {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeStore) trackingState(userID string) domain.ActiveTracking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracking[userID]
}

// fakeRemote is an in-memory RemoteStore
type fakeRemote struct {
	mu              sync.Mutex
	changes         domain.RemoteChanges
	pullErr         error
	pushErr         error
	pushedSessions  [][]domain.WorkSession
	pushedSummaries [][]domain.DaySummary
}

func (r *fakeRemote) PushSessions(_ context.Context, sessions []domain.WorkSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pushErr != nil {
		return r.pushErr
	}
	r.pushedSessions = append(r.pushedSessions, sessions)
	return nil
}

func (r *fakeRemote) PushSummaries(_ context.Context, summaries []domain.DaySummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pushErr != nil {
		return r.pushErr
	}
	r.pushedSummaries = append(r.pushedSummaries, summaries)
	return nil
}

func (r *fakeRemote) PullChanges(_ context.Context, _ string, _ domain.SyncState) (*domain.RemoteChanges, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pullErr != nil {
		return nil, r.pullErr
	}
	changes := r.changes
	return &changes, nil
}

// testClock is a settable clock safe for concurrent readers
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
