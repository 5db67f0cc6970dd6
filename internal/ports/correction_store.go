package ports

import (
	"context"

	"timekeeper/internal/domain"
)

// CorrectionStore is the append-only audit log of applied corrections
type CorrectionStore interface {
	AppendCorrection(ctx context.Context, c domain.AICorrection) error
	GetCorrection(ctx context.Context, id string) (*domain.AICorrection, error)
	ListCorrectionsBySession(ctx context.Context, sessionID string) ([]domain.AICorrection, error)
	ListCorrectionsByDate(ctx context.Context, userID, date string) ([]domain.AICorrection, error)
	// HasActiveCorrection reports whether any non-reverted correction
	// touches the given day
	HasActiveCorrection(ctx context.Context, userID, date string) (bool, error)
	// MarkCorrectionReverted flips the reverted flag; the only mutation
	// allowed on a correction row
	MarkCorrectionReverted(ctx context.Context, id string) error
}
