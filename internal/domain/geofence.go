package domain

import "time"

// GeofenceLocation is a worker-owned fence definition. Read-only input to
// the event normalizer.
type GeofenceLocation struct {
	Active    bool
	Color     string
	CreatedAt time.Time
	ID        string
	Latitude  float64
	Longitude float64
	Name      string
	RadiusM   float64
	UpdatedAt time.Time
	UserID    string
}
