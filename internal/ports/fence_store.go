package ports

import (
	"context"

	"timekeeper/internal/domain"
)

// FenceStore reads and writes worker-owned geofence definitions
type FenceStore interface {
	GetFence(ctx context.Context, userID, fenceID string) (*domain.GeofenceLocation, error)
	ListFences(ctx context.Context, userID string) ([]domain.GeofenceLocation, error)
	SaveFence(ctx context.Context, f domain.GeofenceLocation) error
}
