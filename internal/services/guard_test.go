package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timekeeper/internal/domain"
)

type expireRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *expireRecorder) onExpire(_, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, sessionID)
}

func (r *expireRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestGuard_ExpiredSessionFires(t *testing.T) {
	store := newFakeStore()
	recorder := &expireRecorder{}
	guard := NewGuardScheduler(store, 30*time.Millisecond, recorder.onExpire)
	t.Cleanup(guard.Stop)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, domain.WorkSession{
		EnterAt: time.Now().UTC(),
		ID:      "s1",
		UserID:  "w1",
	}))
	require.NoError(t, guard.HandleStart(ctx, domain.EffectPayload{SessionID: "s1", UserID: "w1"}))

	require.Eventually(t, func() bool {
		return recorder.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGuard_CancelStopsTimer(t *testing.T) {
	store := newFakeStore()
	recorder := &expireRecorder{}
	guard := NewGuardScheduler(store, 50*time.Millisecond, recorder.onExpire)
	t.Cleanup(guard.Stop)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, domain.WorkSession{
		EnterAt: time.Now().UTC(),
		ID:      "s1",
		UserID:  "w1",
	}))
	require.NoError(t, guard.HandleStart(ctx, domain.EffectPayload{SessionID: "s1", UserID: "w1"}))
	require.NoError(t, guard.HandleCancel(ctx, domain.EffectPayload{SessionID: "s1", UserID: "w1"}))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, recorder.count())
}

func TestGuard_ClosedSessionIsNotArmed(t *testing.T) {
	store := newFakeStore()
	recorder := &expireRecorder{}
	guard := NewGuardScheduler(store, 10*time.Millisecond, recorder.onExpire)
	t.Cleanup(guard.Stop)
	ctx := context.Background()

	session := domain.WorkSession{EnterAt: time.Now().UTC().Add(-time.Hour), ID: "s1", UserID: "w1"}
	session.Close(time.Now().UTC())
	require.NoError(t, store.CreateSession(ctx, session))

	require.NoError(t, guard.HandleStart(ctx, domain.EffectPayload{SessionID: "s1", UserID: "w1"}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, recorder.count())
}

func TestGuard_VanishedSessionIsNoOp(t *testing.T) {
	store := newFakeStore()
	guard := NewGuardScheduler(store, time.Hour, func(string, string) {})
	t.Cleanup(guard.Stop)

	assert.NoError(t, guard.HandleStart(context.Background(), domain.EffectPayload{SessionID: "nope", UserID: "w1"}))
}

// Open sessions left over from a crash get their guards re-armed on start,
// with deadlines still counted from the original enter time
func TestGuard_StartRearmsOpenSessions(t *testing.T) {
	store := newFakeStore()
	recorder := &expireRecorder{}
	guard := NewGuardScheduler(store, time.Hour, recorder.onExpire)
	t.Cleanup(guard.Stop)
	ctx := context.Background()

	// Entered two hours ago: already past the one-hour deadline
	require.NoError(t, store.CreateSession(ctx, domain.WorkSession{
		EnterAt: time.Now().UTC().Add(-2 * time.Hour),
		ID:      "stale",
		UserID:  "w1",
	}))
	require.NoError(t, guard.Start(ctx))

	require.Eventually(t, func() bool {
		return recorder.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
}
