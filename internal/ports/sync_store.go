package ports

import (
	"context"

	"timekeeper/internal/domain"
)

// SyncStateStore persists the per-user sync watermark
type SyncStateStore interface {
	GetSyncState(ctx context.Context, userID string) (*domain.SyncState, error)
	SaveSyncState(ctx context.Context, s domain.SyncState) error
}

// RemoteStore is the remote side of reconciliation. Transport failures are
// returned as errors; the sync engine decides whether to re-queue.
type RemoteStore interface {
	PushSessions(ctx context.Context, sessions []domain.WorkSession) error
	PushSummaries(ctx context.Context, summaries []domain.DaySummary) error
	PullChanges(ctx context.Context, userID string, since domain.SyncState) (*domain.RemoteChanges, error)
}
