package ports

import (
	"context"

	"timekeeper/internal/domain"
)

// Notifier delivers worker-facing notifications triggered by effects
type Notifier interface {
	Notify(ctx context.Context, userID string, kind domain.EffectType, message string) error
}
