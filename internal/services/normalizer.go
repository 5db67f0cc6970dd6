package services

import (
	"context"
	"fmt"
	"time"

	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
	"timekeeper/internal/metrics"
	"timekeeper/internal/ports"
)

// Normalizer validates raw enter/exit signals from any producer and turns
// them into canonical tracking events. Pure transform plus validation: it
// has no side effects beyond logging and metrics.
type Normalizer struct {
	fences ports.FenceStore
	now    func() time.Time
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(fences ports.FenceStore) *Normalizer {
	return &Normalizer{
		fences: fences,
		now:    time.Now,
	}
}

// Normalize validates a raw signal against the worker's known fences and
// assigns per-source confidence. Invalid signals return an error; callers
// treat them as non-fatal drops.
func (n *Normalizer) Normalize(ctx context.Context, raw domain.RawSignal) (*domain.TrackingEvent, error) {
	if raw.UserID == "" {
		metrics.EventsDroppedInvalid.WithLabelValues("missing_user").Inc()
		return nil, fmt.Errorf("signal without user_id")
	}
	if raw.Type != domain.EventEnter && raw.Type != domain.EventExit {
		metrics.EventsDroppedInvalid.WithLabelValues("bad_type").Inc()
		return nil, fmt.Errorf("unknown event type %q", raw.Type)
	}
	if !eventSource(raw.Source) {
		metrics.EventsDroppedInvalid.WithLabelValues("bad_source").Inc()
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSource, raw.Source)
	}

	fence, err := n.fences.GetFence(ctx, raw.UserID, raw.FenceID)
	if err != nil {
		metrics.EventsDroppedInvalid.WithLabelValues("unknown_fence").Inc()
		logging.Logger.Warn("Dropping signal for unknown fence",
			"user_id", raw.UserID,
			"fence_id", raw.FenceID,
			"source", raw.Source)
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFence, raw.FenceID)
	}
	if !fence.Active {
		metrics.EventsDroppedInvalid.WithLabelValues("inactive_fence").Inc()
		return nil, fmt.Errorf("%w: fence %s is inactive", domain.ErrUnknownFence, raw.FenceID)
	}

	receivedAt := n.now().UTC()
	occurredAt := raw.OccurredAt.UTC()
	if raw.OccurredAt.IsZero() {
		// Producers that only report "now" get ingestion time
		occurredAt = receivedAt
	}

	delayMs := receivedAt.Sub(occurredAt).Milliseconds()
	if delayMs < 0 {
		delayMs = 0
	}

	event := &domain.TrackingEvent{
		Confidence: confidenceFor(raw.Source, raw.AccuracyM),
		DelayMs:    delayMs,
		FenceID:    fence.ID,
		FenceName:  fence.Name,
		OccurredAt: occurredAt,
		ReceivedAt: receivedAt,
		Source:     raw.Source,
		Type:       raw.Type,
		UserID:     raw.UserID,
	}
	if raw.Latitude != nil && raw.Longitude != nil {
		event.Location = &domain.Location{
			AccuracyM: raw.AccuracyM,
			Latitude:  *raw.Latitude,
			Longitude: *raw.Longitude,
		}
	}

	metrics.EventsIngested.WithLabelValues(string(raw.Source), string(raw.Type)).Inc()
	return event, nil
}

// eventSource reports whether a source may produce enter/exit signals.
// The Secretary only proposes corrections; it never emits events.
func eventSource(s domain.Source) bool {
	switch s {
	case domain.SourceSDK, domain.SourceHeadless, domain.SourceWatchdog,
		domain.SourceGPSCheck, domain.SourceManual, domain.SourceVoice,
		domain.SourceEdited:
		return true
	default:
		return false
	}
}

// confidenceFor assigns trust per source. SDK callbacks degrade with GPS
// accuracy; human input is always fully trusted.
func confidenceFor(source domain.Source, accuracyM float64) float64 {
	switch source {
	case domain.SourceVoice, domain.SourceManual, domain.SourceEdited:
		return 1.0
	case domain.SourceHeadless:
		return 0.85
	case domain.SourceWatchdog:
		return 0.75
	case domain.SourceGPSCheck:
		return 0.65
	case domain.SourceSDK:
		switch {
		case accuracyM <= 0 || accuracyM <= 25:
			return 0.9
		case accuracyM <= 50:
			return 0.8
		case accuracyM <= 100:
			return 0.7
		default:
			return 0.6
		}
	default:
		return 0
	}
}
