package domain

import "time"

// Field names used for per-field provenance and corrections
const (
	FieldBreakSeconds = "break_seconds"
	FieldEnterAt      = "enter_at"
	FieldExitAt       = "exit_at"
	FieldLocationName = "location_name"
	FieldNotes        = "notes"
)

// FieldProvenance records which source last wrote a field and when.
// Arbitration is per-field: a voice-corrected enter_at survives later
// automatic corrections that touch other fields of the same session.
type FieldProvenance struct {
	Source    Source    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkSession is one continuous presence at a location. Append-mostly:
// never physically deleted, only soft-deleted, to preserve the audit trail.
type WorkSession struct {
	BreakSeconds    int64
	Confidence      float64
	CreatedAt       time.Time
	DeletedAt       *time.Time
	DurationMinutes int64
	EnterAt         time.Time
	ExitAt          *time.Time
	FieldSources    map[string]FieldProvenance
	ID              string
	LocationID      string
	LocationName    string
	Notes           string
	Source          Source
	SyncedAt        *time.Time
	UpdatedAt       time.Time
	UserID          string
}

// Open reports whether the session has not been closed yet
func (s WorkSession) Open() bool { return s.ExitAt == nil }

// Deleted reports whether the session is soft-deleted
func (s WorkSession) Deleted() bool { return s.DeletedAt != nil }

// Close sets the exit time and derives duration_minutes:
// (exit_at - enter_at) - break_seconds, floored to whole minutes.
func (s *WorkSession) Close(exitAt time.Time) {
	s.ExitAt = &exitAt
	secs := int64(exitAt.Sub(s.EnterAt).Seconds()) - s.BreakSeconds
	if secs < 0 {
		secs = 0
	}
	s.DurationMinutes = secs / 60
}

// Provenance returns the per-field provenance, falling back to the
// session-level source for fields never individually corrected.
func (s WorkSession) Provenance(field string) FieldProvenance {
	if p, ok := s.FieldSources[field]; ok {
		return p
	}
	return FieldProvenance{Source: s.Source, UpdatedAt: s.UpdatedAt}
}

// SetProvenance records that a field was written by source at the given time
func (s *WorkSession) SetProvenance(field string, source Source, at time.Time) {
	if s.FieldSources == nil {
		s.FieldSources = make(map[string]FieldProvenance)
	}
	s.FieldSources[field] = FieldProvenance{Source: source, UpdatedAt: at}
}

// Dirty reports whether the session has local changes not yet uploaded
func (s WorkSession) Dirty() bool {
	return s.SyncedAt == nil || s.UpdatedAt.After(*s.SyncedAt)
}
