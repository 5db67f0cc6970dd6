package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timekeeper/internal/domain"
)

func newTestNormalizer(t *testing.T) (*Normalizer, *fakeStore, *testClock) {
	t.Helper()
	store := newFakeStore()
	require.NoError(t, store.SaveFence(context.Background(), domain.GeofenceLocation{
		Active: true,
		ID:     "fence-1",
		Name:   "Office",
		UserID: "w1",
	}))
	require.NoError(t, store.SaveFence(context.Background(), domain.GeofenceLocation{
		Active: false,
		ID:     "fence-off",
		Name:   "Old Site",
		UserID: "w1",
	}))

	clock := newTestClock(time.Date(2026, 3, 10, 8, 0, 10, 0, time.UTC))
	n := NewNormalizer(store)
	n.now = clock.Now
	return n, store, clock
}

func TestNormalize_RejectsInvalidSignals(t *testing.T) {
	n, _, _ := newTestNormalizer(t)
	valid := domain.RawSignal{
		FenceID: "fence-1",
		Source:  domain.SourceSDK,
		Type:    domain.EventEnter,
		UserID:  "w1",
	}

	tests := []struct {
		name   string
		mutate func(*domain.RawSignal)
	}{
		{"missing user", func(r *domain.RawSignal) { r.UserID = "" }},
		{"bad type", func(r *domain.RawSignal) { r.Type = "teleport" }},
		{"secretary cannot emit events", func(r *domain.RawSignal) { r.Source = domain.SourceSecretary }},
		{"unknown source", func(r *domain.RawSignal) { r.Source = "carrier-pigeon" }},
		{"unknown fence", func(r *domain.RawSignal) { r.FenceID = "nope" }},
		{"other worker's fence", func(r *domain.RawSignal) { r.UserID = "w2" }},
		{"inactive fence", func(r *domain.RawSignal) { r.FenceID = "fence-off" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := valid
			tt.mutate(&raw)
			event, err := n.Normalize(context.Background(), raw)
			assert.Error(t, err)
			assert.Nil(t, event)
		})
	}
}

func TestNormalize_CanonicalEvent(t *testing.T) {
	n, _, clock := newTestNormalizer(t)
	occurredAt := clock.Now().Add(-10 * time.Second)
	lat, lon := 38.7223, -9.1393

	event, err := n.Normalize(context.Background(), domain.RawSignal{
		AccuracyM:  12,
		FenceID:    "fence-1",
		Latitude:   &lat,
		Longitude:  &lon,
		OccurredAt: occurredAt,
		Source:     domain.SourceSDK,
		Type:       domain.EventEnter,
		UserID:     "w1",
	})
	require.NoError(t, err)

	assert.Equal(t, "fence-1", event.FenceID)
	assert.Equal(t, "Office", event.FenceName)
	assert.Equal(t, occurredAt, event.OccurredAt)
	assert.Equal(t, clock.Now(), event.ReceivedAt)
	assert.Equal(t, int64(10000), event.DelayMs)
	assert.Equal(t, 0.9, event.Confidence)
	require.NotNil(t, event.Location)
	assert.Equal(t, lat, event.Location.Latitude)
}

func TestNormalize_ZeroOccurredAtUsesReceivedAt(t *testing.T) {
	n, _, clock := newTestNormalizer(t)

	event, err := n.Normalize(context.Background(), domain.RawSignal{
		FenceID: "fence-1",
		Source:  domain.SourceWatchdog,
		Type:    domain.EventExit,
		UserID:  "w1",
	})
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), event.OccurredAt)
	assert.Equal(t, int64(0), event.DelayMs)
}

func TestConfidenceFor(t *testing.T) {
	tests := []struct {
		name      string
		source    domain.Source
		accuracyM float64
		expected  float64
	}{
		{"voice fully trusted", domain.SourceVoice, 0, 1.0},
		{"manual fully trusted", domain.SourceManual, 500, 1.0},
		{"headless", domain.SourceHeadless, 0, 0.85},
		{"watchdog", domain.SourceWatchdog, 0, 0.75},
		{"gps check", domain.SourceGPSCheck, 0, 0.65},
		{"sdk tight fix", domain.SourceSDK, 20, 0.9},
		{"sdk moderate fix", domain.SourceSDK, 40, 0.8},
		{"sdk loose fix", domain.SourceSDK, 90, 0.7},
		{"sdk poor fix", domain.SourceSDK, 300, 0.6},
		{"sdk no accuracy", domain.SourceSDK, 0, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, confidenceFor(tt.source, tt.accuracyM))
		})
	}
}
