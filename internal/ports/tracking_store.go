package ports

import (
	"context"

	"timekeeper/internal/domain"
)

// TrackingStore persists the per-worker live tracking row. It is the
// durable anchor the state machine recovers from after a crash.
type TrackingStore interface {
	// GetActiveTracking returns the live row for a worker, or an IDLE row
	// if the worker has never been tracked
	GetActiveTracking(ctx context.Context, userID string) (*domain.ActiveTracking, error)

	// ListActiveTracking returns every non-IDLE row, used to re-arm
	// cooldown and guard timers on restart
	ListActiveTracking(ctx context.Context) ([]domain.ActiveTracking, error)

	// SaveActiveTracking upserts the live row
	SaveActiveTracking(ctx context.Context, t domain.ActiveTracking) error
}
