package domain

import "time"

// TrackingStatus is the state of a worker's live tracking row
type TrackingStatus string

const (
	StatusIdle        TrackingStatus = "IDLE"
	StatusTracking    TrackingStatus = "TRACKING"
	StatusExitPending TrackingStatus = "EXIT_PENDING"
)

// ActiveTracking is the single live tracking row per worker. It is the
// durable anchor for crash recovery: the state machine can be rebuilt from
// this row plus replay of not-yet-applied events.
type ActiveTracking struct {
	CooldownExpiresAt *time.Time
	EnterAt           *time.Time
	ExitAt            *time.Time
	LocationID        string
	LocationName      string
	PauseSeconds      int64
	SessionID         string
	Status            TrackingStatus
	UpdatedAt         time.Time
	UserID            string
}

// IsActive reports whether a session is currently owned by this row
func (t ActiveTracking) IsActive() bool {
	return t.Status == StatusTracking || t.Status == StatusExitPending
}
