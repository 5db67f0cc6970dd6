package domain

import "time"

// SyncStats is the transient report of one reconciliation run
type SyncStats struct {
	Conflicts  int           `json:"conflicts"`
	Downloaded int           `json:"downloaded"`
	Duration   time.Duration `json:"duration_ms"`
	Errors     int           `json:"errors"`
	Uploaded   int           `json:"uploaded"`
}

// RemoteChanges is the set of records pulled from the remote store since a
// sync watermark
type RemoteChanges struct {
	Sessions  []WorkSession
	Summaries []DaySummary
}

// SyncState is the per-user durable sync watermark. Only advanced after a
// fully committed run, so an interrupted sync resumes where it left off.
type SyncState struct {
	LastSyncedAt time.Time
	UpdatedAt    time.Time
	UserID       string
}
