package ports

import (
	"context"
	"time"

	"timekeeper/internal/domain"
)

// EffectQueue is the durable outbox for side effects. Intent is persisted
// before execution and marked done only after success.
type EffectQueue interface {
	// EnqueueEffect persists a new effect. A pending effect with the same
	// dedup key coalesces: the call is a no-op.
	EnqueueEffect(ctx context.Context, e domain.QueuedEffect) error

	// DueEffects returns pending effects in a lane whose next_run_at has
	// passed, oldest first
	DueEffects(ctx context.Context, lane domain.EffectPriority, now time.Time, limit int) ([]domain.QueuedEffect, error)

	MarkEffectDone(ctx context.Context, id string) error
	MarkEffectFailed(ctx context.Context, id string) error
	RescheduleEffect(ctx context.Context, id string, retryCount int, nextRunAt time.Time) error

	// EffectExecuted reports whether an effect with this dedup key already
	// completed, for idempotence under redelivery
	EffectExecuted(ctx context.Context, dedupKey string) (bool, error)

	// ListFailedEffects surfaces terminally failed effects for operators
	ListFailedEffects(ctx context.Context) ([]domain.QueuedEffect, error)
}
