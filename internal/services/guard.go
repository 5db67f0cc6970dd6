package services

import (
	"context"
	"sync"
	"time"

	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
	"timekeeper/internal/ports"
)

// GuardScheduler auto-closes sessions whose exit never arrived. One timer
// per open session, armed from the session's enter time so a daemon
// restart doesn't extend the deadline.
type GuardScheduler struct {
	duration time.Duration
	mu       sync.Mutex
	now      func() time.Time
	onExpire func(userID, sessionID string)
	sessions ports.SessionReader
	timers   map[string]*time.Timer
}

// NewGuardScheduler creates a new GuardScheduler. onExpire is invoked off
// the timer goroutine when a guard fires.
func NewGuardScheduler(sessions ports.SessionReader, duration time.Duration, onExpire func(userID, sessionID string)) *GuardScheduler {
	return &GuardScheduler{
		duration: duration,
		now:      time.Now,
		onExpire: onExpire,
		sessions: sessions,
		timers:   make(map[string]*time.Timer),
	}
}

// Start re-arms guards for every open session, so sessions left open
// across a crash still get auto-closed
func (g *GuardScheduler) Start(ctx context.Context) error {
	open, err := g.sessions.ListOpenSessions(ctx)
	if err != nil {
		return err
	}
	for _, s := range open {
		g.armSession(s)
	}
	if len(open) > 0 {
		logging.Logger.Info("Re-armed session guards", "count", len(open))
	}
	return nil
}

// Stop cancels all pending guards
func (g *GuardScheduler) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, timer := range g.timers {
		timer.Stop()
		delete(g.timers, id)
	}
}

// HandleStart is the START_SESSION_GUARD effect handler
func (g *GuardScheduler) HandleStart(ctx context.Context, payload domain.EffectPayload) error {
	session, err := g.sessions.GetSession(ctx, payload.SessionID)
	if err != nil {
		if err == domain.ErrSessionNotFound {
			// Session vanished between enqueue and execution; nothing to guard
			return nil
		}
		return err
	}
	if !session.Open() || session.Deleted() {
		return nil
	}
	g.armSession(*session)
	return nil
}

// HandleCancel is the CANCEL_SESSION_GUARD effect handler
func (g *GuardScheduler) HandleCancel(_ context.Context, payload domain.EffectPayload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if timer, ok := g.timers[payload.SessionID]; ok {
		timer.Stop()
		delete(g.timers, payload.SessionID)
	}
	return nil
}

// armSession schedules the auto-close deadline relative to enter_at. A
// session already past its deadline fires immediately.
func (g *GuardScheduler) armSession(s domain.WorkSession) {
	deadline := s.EnterAt.Add(g.duration)
	wait := deadline.Sub(g.now())
	if wait < 0 {
		wait = 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if timer, ok := g.timers[s.ID]; ok {
		timer.Stop()
	}

	userID, sessionID := s.UserID, s.ID
	g.timers[sessionID] = time.AfterFunc(wait, func() {
		g.mu.Lock()
		delete(g.timers, sessionID)
		g.mu.Unlock()

		logging.Logger.Warn("Session guard expired, auto-closing",
			"user_id", userID,
			"session_id", sessionID)
		g.onExpire(userID, sessionID)
	})
}
