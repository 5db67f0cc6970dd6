package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timekeeper/internal/config"
	"timekeeper/internal/domain"
)

func TestNewEffect(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	effect, err := newEffect(domain.EffectNotifyArrival, domain.EffectPayload{
		SessionID: "s1",
		UserID:    "w1",
	}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, effect.ID)
	assert.Equal(t, "NOTIFY_ARRIVAL:s1", effect.DedupKey)
	assert.Equal(t, domain.PriorityCritical, effect.Priority)
	assert.Equal(t, domain.EffectPending, effect.Status)
	assert.Equal(t, now, effect.NextRunAt)

	effect, err = newEffect(domain.EffectSyncNow, domain.EffectPayload{UserID: "w1"}, now)
	require.NoError(t, err)
	assert.Equal(t, "SYNC_NOW:w1", effect.DedupKey)
	assert.Equal(t, domain.PriorityNormal, effect.Priority)

	// Rebuilds dedup per day, not per worker
	effect, err = newEffect(domain.EffectRebuildDaySummary, domain.EffectPayload{
		Date:   "2026-03-10",
		UserID: "w1",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, "REBUILD_DAY_SUMMARY:w1:2026-03-10", effect.DedupKey)
}

func TestEffectsWorker_EnqueueCoalesces(t *testing.T) {
	store := newFakeStore()
	worker := NewEffectsWorker(store, config.Tuning{EffectMaxRetries: 3, EffectBackoff: time.Second})

	ctx := context.Background()
	payload := domain.EffectPayload{UserID: "w1"}
	require.NoError(t, worker.Enqueue(ctx, domain.EffectSyncNow, payload))
	require.NoError(t, worker.Enqueue(ctx, domain.EffectSyncNow, payload))

	assert.Len(t, store.pendingEffects(domain.EffectSyncNow), 1)
}

// Sessions closing either side of midnight queue rebuilds for two dates;
// the pending coalesce must keep both
func TestEffectsWorker_RebuildsForDifferentDatesBothQueue(t *testing.T) {
	store := newFakeStore()
	worker := NewEffectsWorker(store, config.Tuning{EffectMaxRetries: 3, EffectBackoff: time.Second})

	ctx := context.Background()
	require.NoError(t, worker.Enqueue(ctx, domain.EffectRebuildDaySummary, domain.EffectPayload{
		Date:   "2026-03-10",
		UserID: "w1",
	}))
	require.NoError(t, worker.Enqueue(ctx, domain.EffectRebuildDaySummary, domain.EffectPayload{
		Date:   "2026-03-11",
		UserID: "w1",
	}))

	assert.Len(t, store.pendingEffects(domain.EffectRebuildDaySummary), 2)
}

func TestEffectsWorker_DrainExecutesAndMarksDone(t *testing.T) {
	store := newFakeStore()
	worker := NewEffectsWorker(store, config.Tuning{EffectMaxRetries: 3, EffectBackoff: time.Second})

	var handled []string
	worker.Register(domain.EffectRebuildDaySummary, func(_ context.Context, payload domain.EffectPayload) error {
		handled = append(handled, payload.Date)
		return nil
	})

	ctx := context.Background()
	require.NoError(t, worker.Enqueue(ctx, domain.EffectRebuildDaySummary, domain.EffectPayload{
		Date:   "2026-03-10",
		UserID: "w1",
	}))
	require.NoError(t, worker.DrainOnce(ctx))

	assert.Equal(t, []string{"2026-03-10"}, handled)
	assert.Empty(t, store.pendingEffects(domain.EffectRebuildDaySummary))
}

func TestEffectsWorker_CriticalDrainsBeforeNormal(t *testing.T) {
	store := newFakeStore()
	worker := NewEffectsWorker(store, config.Tuning{EffectMaxRetries: 3, EffectBackoff: time.Second})

	var mu sync.Mutex
	var order []domain.EffectType
	record := func(kind domain.EffectType) EffectHandler {
		return func(context.Context, domain.EffectPayload) error {
			mu.Lock()
			order = append(order, kind)
			mu.Unlock()
			return nil
		}
	}
	worker.Register(domain.EffectSyncNow, record(domain.EffectSyncNow))
	worker.Register(domain.EffectNotifyArrival, record(domain.EffectNotifyArrival))

	ctx := context.Background()
	require.NoError(t, worker.Enqueue(ctx, domain.EffectSyncNow, domain.EffectPayload{UserID: "w1"}))
	require.NoError(t, worker.Enqueue(ctx, domain.EffectNotifyArrival, domain.EffectPayload{SessionID: "s1", UserID: "w1"}))
	require.NoError(t, worker.DrainOnce(ctx))

	assert.Equal(t, []domain.EffectType{domain.EffectNotifyArrival, domain.EffectSyncNow}, order)
}

func TestEffectsWorker_RetriesWithBackoffThenFails(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	worker := NewEffectsWorker(store, config.Tuning{EffectMaxRetries: 2, EffectBackoff: 30 * time.Second})
	worker.now = clock.Now

	attempts := 0
	worker.Register(domain.EffectSyncNow, func(context.Context, domain.EffectPayload) error {
		attempts++
		return errors.New("backend down")
	})

	ctx := context.Background()
	require.NoError(t, worker.Enqueue(ctx, domain.EffectSyncNow, domain.EffectPayload{UserID: "w1"}))

	// First attempt fails and is pushed 30s out
	require.NoError(t, worker.DrainOnce(ctx))
	assert.Equal(t, 1, attempts)
	pending := store.pendingEffects(domain.EffectSyncNow)
	require.Len(t, pending, 1)
	assert.Equal(t, clock.Now().Add(30*time.Second), pending[0].NextRunAt)

	// Not due yet: nothing runs
	require.NoError(t, worker.DrainOnce(ctx))
	assert.Equal(t, 1, attempts)

	// Second attempt doubles the backoff
	clock.Set(clock.Now().Add(31 * time.Second))
	require.NoError(t, worker.DrainOnce(ctx))
	assert.Equal(t, 2, attempts)
	pending = store.pendingEffects(domain.EffectSyncNow)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].RetryCount)

	// Third attempt exhausts the budget and surfaces the effect as failed
	clock.Set(clock.Now().Add(2 * time.Minute))
	require.NoError(t, worker.DrainOnce(ctx))
	assert.Equal(t, 3, attempts)

	failed, err := store.ListFailedEffects(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, domain.EffectSyncNow, failed[0].Type)
}

func TestEffectsWorker_NotifyRedeliveryIsNoOp(t *testing.T) {
	store := newFakeStore()
	worker := NewEffectsWorker(store, config.Tuning{EffectMaxRetries: 3, EffectBackoff: time.Second})

	delivered := 0
	worker.Register(domain.EffectNotifyArrival, func(context.Context, domain.EffectPayload) error {
		delivered++
		return nil
	})

	ctx := context.Background()
	payload := domain.EffectPayload{SessionID: "s1", UserID: "w1"}
	require.NoError(t, worker.Enqueue(ctx, domain.EffectNotifyArrival, payload))
	require.NoError(t, worker.DrainOnce(ctx))
	assert.Equal(t, 1, delivered)

	// The same notification enqueued again after completion is absorbed by
	// the dedup check instead of reaching the worker's notifier
	require.NoError(t, worker.Enqueue(ctx, domain.EffectNotifyArrival, payload))
	require.NoError(t, worker.DrainOnce(ctx))
	assert.Equal(t, 1, delivered)
}

// A second flap cycle within the same session pauses again; the dedup
// that absorbs redelivered arrivals must not swallow the new pause
func TestEffectsWorker_PausedNotifiesEveryFlapCycle(t *testing.T) {
	store := newFakeStore()
	worker := NewEffectsWorker(store, config.Tuning{EffectMaxRetries: 3, EffectBackoff: time.Second})

	delivered := 0
	worker.Register(domain.EffectNotifyPaused, func(context.Context, domain.EffectPayload) error {
		delivered++
		return nil
	})

	ctx := context.Background()
	payload := domain.EffectPayload{SessionID: "s1", UserID: "w1"}
	require.NoError(t, worker.Enqueue(ctx, domain.EffectNotifyPaused, payload))
	require.NoError(t, worker.DrainOnce(ctx))
	require.NoError(t, worker.Enqueue(ctx, domain.EffectNotifyPaused, payload))
	require.NoError(t, worker.DrainOnce(ctx))

	assert.Equal(t, 2, delivered)
}

func TestEffectsWorker_UnknownEffectFails(t *testing.T) {
	store := newFakeStore()
	worker := NewEffectsWorker(store, config.Tuning{EffectMaxRetries: 3, EffectBackoff: time.Second})

	ctx := context.Background()
	require.NoError(t, worker.Enqueue(ctx, domain.EffectCancelSessionGuard, domain.EffectPayload{SessionID: "s1", UserID: "w1"}))
	require.NoError(t, worker.DrainOnce(ctx))

	failed, err := store.ListFailedEffects(ctx)
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}
