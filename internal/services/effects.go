package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"timekeeper/internal/config"
	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
	"timekeeper/internal/metrics"
	"timekeeper/internal/ports"
)

// effectBatchSize bounds how many effects one drain pass claims per lane
const effectBatchSize = 32

// EffectHandler executes one effect type. Handlers must be idempotent:
// delivery is at-least-once.
type EffectHandler func(ctx context.Context, payload domain.EffectPayload) error

// newEffect builds a durable effect row with its dedup key and lane
func newEffect(effectType domain.EffectType, payload domain.EffectPayload, now time.Time) (domain.QueuedEffect, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.QueuedEffect{}, fmt.Errorf("failed to marshal effect payload: %w", err)
	}
	return domain.QueuedEffect{
		CreatedAt: now,
		DedupKey:  domain.EffectDedupKey(effectType, payload),
		ID:        uuid.NewString(),
		NextRunAt: now,
		Payload:   data,
		Priority:  domain.DefaultEffectPriority(effectType),
		Status:    domain.EffectPending,
		Type:      effectType,
		UpdatedAt: now,
	}, nil
}

// EffectsWorker drains the durable effects queue. The critical lane drains
// before normal; lanes run concurrently, but effects touching the same
// session are serialized to avoid racing rebuilds.
type EffectsWorker struct {
	handlers map[domain.EffectType]EffectHandler
	mu       sync.Mutex
	now      func() time.Time
	poll     time.Duration
	queue    ports.EffectQueue
	sessions map[string]*sync.Mutex
	tuning   config.Tuning
}

// NewEffectsWorker creates a new EffectsWorker
func NewEffectsWorker(queue ports.EffectQueue, tuning config.Tuning) *EffectsWorker {
	return &EffectsWorker{
		handlers: make(map[domain.EffectType]EffectHandler),
		now:      time.Now,
		poll:     time.Second,
		queue:    queue,
		sessions: make(map[string]*sync.Mutex),
		tuning:   tuning,
	}
}

// Register binds a handler to an effect type
func (w *EffectsWorker) Register(effectType domain.EffectType, handler EffectHandler) {
	w.handlers[effectType] = handler
}

// Enqueue persists a new effect; the intent survives a crash between
// decision and execution
func (w *EffectsWorker) Enqueue(ctx context.Context, effectType domain.EffectType, payload domain.EffectPayload) error {
	effect, err := newEffect(effectType, payload, w.now().UTC())
	if err != nil {
		return err
	}
	return w.queue.EnqueueEffect(ctx, effect)
}

// Run drains both lanes until the context is cancelled
func (w *EffectsWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.drainLane(ctx, domain.PriorityCritical) })
	g.Go(func() error { return w.drainLane(ctx, domain.PriorityNormal) })
	return g.Wait()
}

// DrainOnce processes everything currently due, critical lane first.
// Used by tests and one-shot CLI commands.
func (w *EffectsWorker) DrainOnce(ctx context.Context) error {
	for _, lane := range []domain.EffectPriority{domain.PriorityCritical, domain.PriorityNormal} {
		for {
			n, err := w.drainBatch(ctx, lane)
			if err != nil {
				return err
			}
			if n == 0 {
				break
			}
		}
	}
	return nil
}

func (w *EffectsWorker) drainLane(ctx context.Context, lane domain.EffectPriority) error {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.drainBatch(ctx, lane); err != nil {
				logging.Logger.Error("Effect drain failed", "lane", lane, "error", err)
			}
		}
	}
}

func (w *EffectsWorker) drainBatch(ctx context.Context, lane domain.EffectPriority) (int, error) {
	due, err := w.queue.DueEffects(ctx, lane, w.now().UTC(), effectBatchSize)
	if err != nil {
		return 0, err
	}

	for _, effect := range due {
		w.execute(ctx, effect)
	}
	return len(due), nil
}

// execute runs one effect with dedup, retry, and terminal-failure handling
func (w *EffectsWorker) execute(ctx context.Context, effect domain.QueuedEffect) {
	var payload domain.EffectPayload
	if err := json.Unmarshal(effect.Payload, &payload); err != nil {
		logging.Logger.Error("Effect has unreadable payload, failing it",
			"effect_id", effect.ID,
			"effect_type", effect.Type,
			"error", err)
		w.fail(ctx, effect)
		return
	}

	unlock := w.lockSession(payload.SessionID)
	defer unlock()

	// Redelivered once-per-session notifications are no-ops
	if notifyOnce(effect.Type) {
		done, err := w.queue.EffectExecuted(ctx, effect.DedupKey)
		if err == nil && done {
			w.markDone(ctx, effect, "dedup")
			return
		}
	}

	handler, ok := w.handlers[effect.Type]
	if !ok {
		logging.Logger.Error("No handler registered for effect, failing it",
			"effect_type", effect.Type)
		w.fail(ctx, effect)
		return
	}

	if err := handler(ctx, payload); err != nil {
		w.retry(ctx, effect, err)
		return
	}
	w.markDone(ctx, effect, "ok")
}

func (w *EffectsWorker) markDone(ctx context.Context, effect domain.QueuedEffect, status string) {
	if err := w.queue.MarkEffectDone(ctx, effect.ID); err != nil {
		logging.Logger.Error("Failed to mark effect done", "effect_id", effect.ID, "error", err)
		return
	}
	metrics.EffectsExecuted.WithLabelValues(string(effect.Type), status).Inc()
}

// retry pushes next_run_at forward with exponential backoff until the
// retry budget is exhausted, then surfaces the effect as failed instead of
// silently dropping it
func (w *EffectsWorker) retry(ctx context.Context, effect domain.QueuedEffect, cause error) {
	retryCount := effect.RetryCount + 1
	if retryCount > w.tuning.EffectMaxRetries {
		logging.Logger.Error("Effect exhausted retries",
			"effect_id", effect.ID,
			"effect_type", effect.Type,
			"retries", effect.RetryCount,
			"error", cause)
		w.fail(ctx, effect)
		return
	}

	backoff := w.tuning.EffectBackoff << (retryCount - 1)
	nextRunAt := w.now().UTC().Add(backoff)
	if err := w.queue.RescheduleEffect(ctx, effect.ID, retryCount, nextRunAt); err != nil {
		logging.Logger.Error("Failed to reschedule effect", "effect_id", effect.ID, "error", err)
		return
	}

	metrics.EffectsExecuted.WithLabelValues(string(effect.Type), "retry").Inc()
	logging.Logger.Warn("Effect failed, retrying",
		"effect_id", effect.ID,
		"effect_type", effect.Type,
		"retry", retryCount,
		"next_run_at", nextRunAt,
		"error", cause)
}

func (w *EffectsWorker) fail(ctx context.Context, effect domain.QueuedEffect) {
	if err := w.queue.MarkEffectFailed(ctx, effect.ID); err != nil {
		logging.Logger.Error("Failed to mark effect failed", "effect_id", effect.ID, "error", err)
		return
	}
	metrics.EffectsExecuted.WithLabelValues(string(effect.Type), "failed").Inc()
	metrics.EffectsFailedTerminal.Inc()
}

// lockSession serializes executions referencing the same session across
// both lanes; effects without a session run unserialized
func (w *EffectsWorker) lockSession(sessionID string) func() {
	if sessionID == "" {
		return func() {}
	}

	w.mu.Lock()
	lock, ok := w.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		w.sessions[sessionID] = lock
	}
	w.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// notifyOnce marks notifications that fire at most once per session.
// Paused/resumed legitimately recur across flap cycles, so a done row for
// an earlier cycle must not suppress them.
func notifyOnce(t domain.EffectType) bool {
	switch t {
	case domain.EffectNotifyArrival, domain.EffectNotifyDeparture,
		domain.EffectNotifyForgotten:
		return true
	default:
		return false
	}
}
