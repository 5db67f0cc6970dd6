package ports

import (
	"context"
	"time"

	"timekeeper/internal/domain"
)

// SummaryStore persists derived day summaries
type SummaryStore interface {
	GetDaySummary(ctx context.Context, userID, date string) (*domain.DaySummary, error)
	SaveDaySummary(ctx context.Context, s domain.DaySummary) error
	// ListRecentSummaries returns up to limit summaries before the given
	// date, newest first, for historical averages
	ListRecentSummaries(ctx context.Context, userID, beforeDate string, limit int) ([]domain.DaySummary, error)
	ListDirtySummaries(ctx context.Context, userID string) ([]domain.DaySummary, error)
	MarkSummariesSynced(ctx context.Context, userID string, dates []string, at time.Time) error
}
