package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"timekeeper/internal/config"
	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
	"timekeeper/internal/metrics"
	"timekeeper/internal/ports"
)

// defaultActorQueueCap bounds each worker's ingestion queue
const defaultActorQueueCap = 64

// actorMsg is the unit of work serialized through a worker's actor.
// Exactly one of the three variants is set.
type actorMsg struct {
	autoCloseID string
	event       *domain.TrackingEvent
	tick        bool
}

// userActor owns all mutation for one worker. Events from every producer
// (SDK callback, headless task, watchdog, UI) funnel through its inbox,
// so the state machine itself is single-threaded per user.
type userActor struct {
	inbox  chan actorMsg
	timer  *time.Timer
	userID string
}

// Tracker is the attendance tracking state machine. One actor per worker,
// created lazily; each transition is one durable write, so a crash is
// recovered by reloading ActiveTracking and replaying undelivered events.
type Tracker struct {
	actors     map[string]*userActor
	cancel     context.CancelFunc
	ctx        context.Context
	mu         sync.Mutex
	normalizer *Normalizer
	now        func() time.Time
	queue      ports.EffectQueue
	queueCap   int
	sessions   ports.SessionStore
	tracking   ports.TrackingStore
	tuning     config.Tuning
	wg         sync.WaitGroup
}

// NewTracker creates a new Tracker
func NewTracker(
	tracking ports.TrackingStore,
	sessions ports.SessionStore,
	queue ports.EffectQueue,
	normalizer *Normalizer,
	tuning config.Tuning,
) *Tracker {
	return &Tracker{
		actors:     make(map[string]*userActor),
		normalizer: normalizer,
		now:        time.Now,
		queue:      queue,
		queueCap:   defaultActorQueueCap,
		sessions:   sessions,
		tracking:   tracking,
		tuning:     tuning,
	}
}

// Start recovers persisted state: every worker left mid-tracking gets its
// actor back so pending cooldowns fire even if no new event ever arrives.
func (t *Tracker) Start(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	rows, err := t.tracking.ListActiveTracking(t.ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		t.actorFor(row.UserID)
	}

	logging.Logger.Info("Tracker started", "recovered_workers", len(rows))
	return nil
}

// Stop shuts down all actors and waits for them to drain
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}

// Ingest is the single entry point for all producers. Normalization is
// synchronous so callers learn about invalid signals, but the state
// transition is applied asynchronously: producers are never blocked on
// persistence.
func (t *Tracker) Ingest(ctx context.Context, raw domain.RawSignal) error {
	event, err := t.normalizer.Normalize(ctx, raw)
	if err != nil {
		return err
	}
	t.dispatch(event)
	return nil
}

// GetActiveTracking returns a read-only snapshot for UI
func (t *Tracker) GetActiveTracking(ctx context.Context, userID string) (*domain.ActiveTracking, error) {
	return t.tracking.GetActiveTracking(ctx, userID)
}

// AutoCloseSession closes a session left open past the guard timeout.
// Routed through the owning actor so it serializes with live events.
func (t *Tracker) AutoCloseSession(userID, sessionID string) {
	t.send(t.actorFor(userID), actorMsg{autoCloseID: sessionID})
}

func (t *Tracker) dispatch(event *domain.TrackingEvent) {
	t.send(t.actorFor(event.UserID), actorMsg{event: event})
}

func (t *Tracker) send(a *userActor, msg actorMsg) {
	select {
	case a.inbox <- msg:
		metrics.ActorQueueDepth.WithLabelValues(a.userID).Set(float64(len(a.inbox)))
	default:
		metrics.EventsDroppedOverflow.Inc()
		logging.Logger.Error("Worker ingestion queue full, dropping message", "user_id", a.userID)
	}
}

func (t *Tracker) actorFor(userID string) *userActor {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.actors[userID]; ok {
		return a
	}

	a := &userActor{
		inbox:  make(chan actorMsg, t.queueCap),
		userID: userID,
	}
	t.actors[userID] = a

	t.wg.Add(1)
	go t.run(a)
	return a
}

// run is the actor loop: load durable state once, then apply messages
// serially, persisting after every transition
func (t *Tracker) run(a *userActor) {
	defer t.wg.Done()

	state, err := t.tracking.GetActiveTracking(t.ctx, a.userID)
	if err != nil {
		logging.Logger.Error("Failed to load tracking state, starting idle",
			"user_id", a.userID,
			"error", err)
		state = &domain.ActiveTracking{Status: domain.StatusIdle, UserID: a.userID}
	}
	st := *state
	t.armCooldown(a, st)

	for {
		select {
		case <-t.ctx.Done():
			if a.timer != nil {
				a.timer.Stop()
			}
			return
		case msg := <-a.inbox:
			metrics.ActorQueueDepth.WithLabelValues(a.userID).Set(float64(len(a.inbox)))
			switch {
			case msg.tick:
				st = t.maybeFinalize(a, st)
			case msg.autoCloseID != "":
				st = t.applyAutoClose(st, msg.autoCloseID)
			case msg.event != nil:
				st = t.apply(a, st, *msg.event)
			}
		}
	}
}

// apply runs one event through the state machine and returns the new state
func (t *Tracker) apply(a *userActor, st domain.ActiveTracking, ev domain.TrackingEvent) domain.ActiveTracking {
	// A cooldown that lapsed while this event sat in the queue finalizes
	// first, so the event sees the post-cooldown world
	if st.Status == domain.StatusExitPending && st.CooldownExpiresAt != nil &&
		!ev.OccurredAt.Before(*st.CooldownExpiresAt) {
		st = t.finalize(a, st, *st.ExitAt, "cooldown")
	}

	// Events older than the last applied transition never move the model
	// back in time
	if !st.UpdatedAt.IsZero() && ev.OccurredAt.Before(st.UpdatedAt) {
		t.drop(st, ev, "stale")
		return st
	}

	switch st.Status {
	case domain.StatusIdle:
		if ev.Type == domain.EventEnter {
			return t.open(a, st, ev)
		}
		t.drop(st, ev, "exit_while_idle")
		return st

	case domain.StatusTracking:
		if ev.Type == domain.EventEnter {
			if ev.FenceID == st.LocationID {
				t.drop(st, ev, "duplicate_enter")
				return st
			}
			// Workers cannot be in two places at once: close the current
			// session at the event time, then open the new one
			st = t.finalize(a, st, ev.OccurredAt, "fence_switch")
			return t.open(a, st, ev)
		}
		if ev.FenceID != st.LocationID {
			t.drop(st, ev, "exit_other_fence")
			return st
		}
		return t.pause(a, st, ev)

	case domain.StatusExitPending:
		if ev.Type == domain.EventExit {
			t.drop(st, ev, "duplicate_exit")
			return st
		}
		if ev.FenceID != st.LocationID {
			st = t.finalize(a, st, *st.ExitAt, "fence_switch")
			return t.open(a, st, ev)
		}
		return t.resume(a, st, ev)
	}

	return st
}

// open creates a new work session and moves to TRACKING
func (t *Tracker) open(a *userActor, st domain.ActiveTracking, ev domain.TrackingEvent) domain.ActiveTracking {
	now := t.now().UTC()
	session := domain.WorkSession{
		Confidence:   ev.Confidence,
		CreatedAt:    now,
		EnterAt:      ev.OccurredAt,
		ID:           uuid.NewString(),
		LocationID:   ev.FenceID,
		LocationName: ev.FenceName,
		Source:       ev.Source,
		UpdatedAt:    now,
		UserID:       ev.UserID,
	}
	if err := t.sessions.CreateSession(t.ctx, session); err != nil {
		logging.Logger.Error("Failed to create session", "user_id", ev.UserID, "error", err)
		return st
	}

	enterAt := ev.OccurredAt
	st = domain.ActiveTracking{
		EnterAt:      &enterAt,
		LocationID:   ev.FenceID,
		LocationName: ev.FenceName,
		SessionID:    session.ID,
		Status:       domain.StatusTracking,
		UpdatedAt:    ev.OccurredAt,
		UserID:       ev.UserID,
	}
	t.persist(st)

	t.enqueue(domain.EffectNotifyArrival, domain.EffectPayload{
		LocationName: ev.FenceName,
		SessionID:    session.ID,
		UserID:       ev.UserID,
	})
	t.enqueue(domain.EffectStartSessionGuard, domain.EffectPayload{
		SessionID: session.ID,
		UserID:    ev.UserID,
	})

	metrics.SessionsOpened.Inc()
	logging.Logger.Info("Session opened",
		"user_id", ev.UserID,
		"session_id", session.ID,
		"location", ev.FenceName,
		"source", ev.Source)
	return st
}

// pause records an exit and starts the debounce cooldown
func (t *Tracker) pause(a *userActor, st domain.ActiveTracking, ev domain.TrackingEvent) domain.ActiveTracking {
	exitAt := ev.OccurredAt
	cooldown := exitAt.Add(t.tuning.DebounceWindow)
	st.CooldownExpiresAt = &cooldown
	st.ExitAt = &exitAt
	st.Status = domain.StatusExitPending
	st.UpdatedAt = ev.OccurredAt
	t.persist(st)
	t.armCooldown(a, st)

	t.enqueue(domain.EffectNotifyPaused, domain.EffectPayload{
		LocationName: st.LocationName,
		SessionID:    st.SessionID,
		UserID:       st.UserID,
	})

	logging.Logger.Debug("Exit pending",
		"user_id", st.UserID,
		"session_id", st.SessionID,
		"cooldown_expires_at", cooldown)
	return st
}

// resume absorbs a fence-boundary flap: the re-entry within the cooldown
// window continues the same session, accumulating the gap as pause time
func (t *Tracker) resume(a *userActor, st domain.ActiveTracking, ev domain.TrackingEvent) domain.ActiveTracking {
	st.PauseSeconds += int64(ev.OccurredAt.Sub(*st.ExitAt).Seconds())
	st.CooldownExpiresAt = nil
	st.ExitAt = nil
	st.Status = domain.StatusTracking
	st.UpdatedAt = ev.OccurredAt
	if a.timer != nil {
		a.timer.Stop()
	}
	t.persist(st)

	t.enqueue(domain.EffectNotifyResumed, domain.EffectPayload{
		LocationName: st.LocationName,
		SessionID:    st.SessionID,
		UserID:       st.UserID,
	})

	metrics.FlapsResumed.Inc()
	logging.Logger.Debug("Flap absorbed",
		"user_id", st.UserID,
		"session_id", st.SessionID,
		"pause_seconds", st.PauseSeconds)
	return st
}

// maybeFinalize handles a cooldown tick; a flap that already resumed
// tracking makes the tick a no-op
func (t *Tracker) maybeFinalize(a *userActor, st domain.ActiveTracking) domain.ActiveTracking {
	if st.Status != domain.StatusExitPending || st.CooldownExpiresAt == nil {
		return st
	}
	if t.now().UTC().Before(*st.CooldownExpiresAt) {
		t.armCooldown(a, st)
		return st
	}
	return t.finalize(a, st, *st.ExitAt, "cooldown")
}

// finalize closes the owned session and resets tracking to IDLE
func (t *Tracker) finalize(a *userActor, st domain.ActiveTracking, exitAt time.Time, reason string) domain.ActiveTracking {
	if a.timer != nil {
		a.timer.Stop()
	}

	session, err := t.sessions.GetSession(t.ctx, st.SessionID)
	if err != nil {
		logging.Logger.Error("Failed to load session for close",
			"session_id", st.SessionID,
			"error", err)
	} else {
		session.BreakSeconds = st.PauseSeconds
		session.Close(exitAt)
		session.UpdatedAt = t.now().UTC()
		if err := t.sessions.UpdateSession(t.ctx, *session); err != nil {
			logging.Logger.Error("Failed to close session",
				"session_id", st.SessionID,
				"error", err)
		}
	}

	t.closeEffects(st, exitAt, domain.EffectNotifyDeparture)
	metrics.SessionsClosed.WithLabelValues(reason).Inc()
	logging.Logger.Info("Session closed",
		"user_id", st.UserID,
		"session_id", st.SessionID,
		"reason", reason,
		"pause_seconds", st.PauseSeconds)

	idle := domain.ActiveTracking{
		Status:    domain.StatusIdle,
		UpdatedAt: exitAt,
		UserID:    st.UserID,
	}
	t.persist(idle)
	return idle
}

// applyAutoClose handles a fired session guard: the worker forgot to clock
// out, so the session is closed at the guard time with an audit note
func (t *Tracker) applyAutoClose(st domain.ActiveTracking, sessionID string) domain.ActiveTracking {
	if !st.IsActive() || st.SessionID != sessionID {
		return st
	}

	now := t.now().UTC()
	session, err := t.sessions.GetSession(t.ctx, sessionID)
	if err != nil {
		logging.Logger.Error("Failed to load session for auto close",
			"session_id", sessionID,
			"error", err)
		return st
	}

	session.BreakSeconds = st.PauseSeconds
	session.Close(now)
	if session.Notes != "" {
		session.Notes += "\n"
	}
	session.Notes += "auto-closed: no exit before guard timeout"
	session.SetProvenance(domain.FieldExitAt, domain.SourceEdited, now)
	session.UpdatedAt = now
	if err := t.sessions.UpdateSession(t.ctx, *session); err != nil {
		logging.Logger.Error("Failed to auto-close session",
			"session_id", sessionID,
			"error", err)
		return st
	}

	t.closeEffects(st, now, domain.EffectNotifyForgotten)
	metrics.SessionsClosed.WithLabelValues("guard").Inc()
	logging.Logger.Warn("Session auto-closed by guard",
		"user_id", st.UserID,
		"session_id", sessionID)

	idle := domain.ActiveTracking{
		Status:    domain.StatusIdle,
		UpdatedAt: now,
		UserID:    st.UserID,
	}
	t.persist(idle)
	return idle
}

// closeEffects enqueues the fan-out every close path shares
func (t *Tracker) closeEffects(st domain.ActiveTracking, exitAt time.Time, notify domain.EffectType) {
	payload := domain.EffectPayload{
		LocationName: st.LocationName,
		SessionID:    st.SessionID,
		UserID:       st.UserID,
	}
	t.enqueue(notify, payload)
	t.enqueue(domain.EffectCancelSessionGuard, payload)

	date := exitAt
	if st.EnterAt != nil {
		date = *st.EnterAt
	}
	t.enqueue(domain.EffectRebuildDaySummary, domain.EffectPayload{
		Date:   domain.DayOf(date),
		UserID: st.UserID,
	})
	t.enqueue(domain.EffectSyncNow, domain.EffectPayload{UserID: st.UserID})
}

// armCooldown schedules the finalize tick for an EXIT_PENDING state
func (t *Tracker) armCooldown(a *userActor, st domain.ActiveTracking) {
	if st.Status != domain.StatusExitPending || st.CooldownExpiresAt == nil {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}

	delay := st.CooldownExpiresAt.Sub(t.now().UTC())
	if delay < 0 {
		delay = 0
	}
	a.timer = time.AfterFunc(delay, func() {
		t.send(a, actorMsg{tick: true})
	})
}

func (t *Tracker) persist(st domain.ActiveTracking) {
	if err := t.tracking.SaveActiveTracking(t.ctx, st); err != nil {
		logging.Logger.Error("Failed to persist tracking state",
			"user_id", st.UserID,
			"error", err)
	}
}

func (t *Tracker) enqueue(effectType domain.EffectType, payload domain.EffectPayload) {
	effect, err := newEffect(effectType, payload, t.now().UTC())
	if err != nil {
		logging.Logger.Error("Failed to build effect", "effect_type", effectType, "error", err)
		return
	}
	if err := t.queue.EnqueueEffect(t.ctx, effect); err != nil {
		logging.Logger.Error("Failed to enqueue effect",
			"effect_type", effectType,
			"error", err)
	}
}

func (t *Tracker) drop(st domain.ActiveTracking, ev domain.TrackingEvent, reason string) {
	metrics.EventsDroppedStale.Inc()
	logging.Logger.Debug("Ignoring event",
		"user_id", ev.UserID,
		"type", ev.Type,
		"fence_id", ev.FenceID,
		"occurred_at", ev.OccurredAt,
		"status", st.Status,
		"reason", reason)
}
