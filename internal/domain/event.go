package domain

import "time"

// EventType is the direction of a geofence crossing
type EventType string

const (
	EventEnter EventType = "enter"
	EventExit  EventType = "exit"
)

// Source identifies the producer of a signal or field value
type Source string

const (
	SourceSDK       Source = "sdk"       // OS geofencing callback
	SourceHeadless  Source = "headless"  // background task delivery
	SourceWatchdog  Source = "watchdog"  // periodic GPS poll fallback
	SourceGPSCheck  Source = "gps_check" // on-demand GPS position check
	SourceSecretary Source = "secretary" // AI cleanup proposals
	SourceManual    Source = "manual"    // manual edit UI
	SourceEdited    Source = "edited"    // system-applied edit (guard auto-close)
	SourceVoice     Source = "voice"     // voice command
)

// RawSignal is the untyped input shape shared by all producers.
// OccurredAt may be zero for producers that only report "now".
type RawSignal struct {
	AccuracyM  float64   `json:"accuracy_m,omitempty"`
	FenceID    string    `json:"fence_id"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     Source    `json:"source"`
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
}

// Location is a GPS fix attached to an event
type Location struct {
	AccuracyM float64 `json:"accuracy_m,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TrackingEvent is a validated, canonical enter/exit signal.
// It is ephemeral: consumed by the state machine, never persisted.
type TrackingEvent struct {
	Confidence float64
	DelayMs    int64
	FenceID    string
	FenceName  string
	Location   *Location
	OccurredAt time.Time
	ReceivedAt time.Time
	Source     Source
	Type       EventType
	UserID     string
}
