package domain

import (
	"encoding/json"
	"time"
)

// EffectType identifies a side effect decoupled from the state transition
// that triggered it
type EffectType string

const (
	EffectCancelSessionGuard EffectType = "CANCEL_SESSION_GUARD"
	EffectNotifyArrival      EffectType = "NOTIFY_ARRIVAL"
	EffectNotifyDeparture    EffectType = "NOTIFY_DEPARTURE"
	EffectNotifyForgotten    EffectType = "NOTIFY_FORGOTTEN"
	EffectNotifyPaused       EffectType = "NOTIFY_PAUSED"
	EffectNotifyResumed      EffectType = "NOTIFY_RESUMED"
	EffectRebuildDaySummary  EffectType = "REBUILD_DAY_SUMMARY"
	EffectStartSessionGuard  EffectType = "START_SESSION_GUARD"
	EffectSyncNow            EffectType = "SYNC_NOW"
)

// EffectStatus is the lifecycle of a queued effect
type EffectStatus string

const (
	EffectPending EffectStatus = "pending"
	EffectDone    EffectStatus = "done"
	EffectFailed  EffectStatus = "failed"
)

// EffectPriority selects the drain lane; critical drains before normal
type EffectPriority string

const (
	PriorityCritical EffectPriority = "critical"
	PriorityNormal   EffectPriority = "normal"
)

// QueuedEffect is a durable outbox row: the intent is persisted before the
// effect executes and marked done only after success, so a crash between
// decision and effect loses nothing.
type QueuedEffect struct {
	CreatedAt  time.Time
	DedupKey   string
	ID         string
	NextRunAt  time.Time
	Payload    json.RawMessage
	Priority   EffectPriority
	RetryCount int
	Status     EffectStatus
	Type       EffectType
	UpdatedAt  time.Time
}

// EffectDedupKey builds the idempotency key for an effect. Notify effects
// dedup on (session, type); rebuilds coalesce per (user, date) so pending
// rebuilds for different days never swallow each other; SYNC_NOW coalesces
// per user.
func EffectDedupKey(t EffectType, p EffectPayload) string {
	if t == EffectRebuildDaySummary {
		return string(t) + ":" + p.UserID + ":" + p.Date
	}
	if p.SessionID != "" {
		return string(t) + ":" + p.SessionID
	}
	return string(t) + ":" + p.UserID
}

// EffectPayload is the common payload shape for tracker-originated effects
type EffectPayload struct {
	Date         string `json:"date,omitempty"`
	LocationName string `json:"location_name,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	UserID       string `json:"user_id"`
}

// DefaultEffectPriority maps effect types to their lane. Notifications are
// user-facing and drain first; everything else can wait a beat.
func DefaultEffectPriority(t EffectType) EffectPriority {
	switch t {
	case EffectNotifyArrival, EffectNotifyDeparture, EffectNotifyPaused,
		EffectNotifyResumed, EffectNotifyForgotten:
		return PriorityCritical
	default:
		return PriorityNormal
	}
}
