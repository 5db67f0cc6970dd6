package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timekeeper/internal/config"
	"timekeeper/internal/domain"
)

func testTuning() config.Tuning {
	return config.Tuning{
		EarlyDeparture:  90 * time.Minute,
		HistoryDays:     30,
		NoBreakMinutes:  360,
		OvertimeMinutes: 480,
	}
}

func newTestAggregator(t *testing.T) (*Aggregator, *fakeStore, *testClock) {
	t.Helper()
	store := newFakeStore()
	clock := newTestClock(time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC))
	agg := NewAggregator(store, store, store, testTuning())
	agg.now = clock.Now
	return agg, store, clock
}

func addClosedSession(t *testing.T, store *fakeStore, id string, enter time.Time, minutes int64) {
	t.Helper()
	s := domain.WorkSession{
		EnterAt:      enter,
		ID:           id,
		LocationName: "Office",
		Source:       domain.SourceSDK,
		UpdatedAt:    enter,
		UserID:       "w1",
	}
	s.Close(enter.Add(time.Duration(minutes) * time.Minute))
	require.NoError(t, store.CreateSession(context.Background(), s))
}

func TestAggregator_RebuildFromSessions(t *testing.T) {
	agg, store, _ := newTestAggregator(t)
	ctx := context.Background()
	enter := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	addClosedSession(t, store, "s1", enter, 240)
	addClosedSession(t, store, "s2", enter.Add(5*time.Hour), 200)

	require.NoError(t, agg.RebuildDaySummary(ctx, "w1", "2026-03-10"))

	summary, err := store.GetDaySummary(ctx, "w1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, domain.DayTypeWork, summary.Type)
	assert.Equal(t, 2, summary.SessionsCount)
	assert.Equal(t, int64(440), summary.TotalMinutes)
	assert.Equal(t, "Office", summary.PrimaryLocation)
}

// Rebuilding an unchanged day must not touch the stored row, otherwise
// every rebuild would mark the summary dirty and trigger a pointless sync
func TestAggregator_RebuildIsIdempotent(t *testing.T) {
	agg, store, _ := newTestAggregator(t)
	ctx := context.Background()
	addClosedSession(t, store, "s1", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), 240)

	require.NoError(t, agg.RebuildDaySummary(ctx, "w1", "2026-03-10"))
	savesAfterFirst := store.summarySaves

	require.NoError(t, agg.RebuildDaySummary(ctx, "w1", "2026-03-10"))
	assert.Equal(t, savesAfterFirst, store.summarySaves)
}

func TestAggregator_RebuildPreservesNotes(t *testing.T) {
	agg, store, _ := newTestAggregator(t)
	ctx := context.Background()
	addClosedSession(t, store, "s1", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), 240)

	require.NoError(t, agg.RebuildDaySummary(ctx, "w1", "2026-03-10"))

	summary, err := store.GetDaySummary(ctx, "w1", "2026-03-10")
	require.NoError(t, err)
	summary.Notes = "half day, doctor appointment"
	require.NoError(t, store.SaveDaySummary(ctx, *summary))

	addClosedSession(t, store, "s2", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC), 120)
	require.NoError(t, agg.RebuildDaySummary(ctx, "w1", "2026-03-10"))

	summary, err = store.GetDaySummary(ctx, "w1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, "half day, doctor appointment", summary.Notes)
	assert.Equal(t, 2, summary.SessionsCount)
}

func TestAggregator_FlagsCorrectedDay(t *testing.T) {
	agg, store, _ := newTestAggregator(t)
	ctx := context.Background()
	addClosedSession(t, store, "s1", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), 240)

	require.NoError(t, store.AppendCorrection(ctx, domain.AICorrection{
		Date:      "2026-03-10",
		Field:     domain.FieldExitAt,
		ID:        "c1",
		SessionID: "s1",
		Source:    domain.SourceSecretary,
		UserID:    "w1",
	}))

	require.NoError(t, agg.RebuildDaySummary(ctx, "w1", "2026-03-10"))
	summary, err := store.GetDaySummary(ctx, "w1", "2026-03-10")
	require.NoError(t, err)
	assert.Contains(t, summary.Flags, domain.FlagAICorrected)

	// A reverted correction no longer taints the day
	require.NoError(t, store.MarkCorrectionReverted(ctx, "c1"))
	require.NoError(t, agg.RebuildDaySummary(ctx, "w1", "2026-03-10"))
	summary, err = store.GetDaySummary(ctx, "w1", "2026-03-10")
	require.NoError(t, err)
	assert.NotContains(t, summary.Flags, domain.FlagAICorrected)
}

func TestAggregator_EarlyDepartureUsesHistory(t *testing.T) {
	agg, store, _ := newTestAggregator(t)
	ctx := context.Background()

	// A month of 18:00 departures establishes the baseline
	for day := 1; day <= 5; day++ {
		exit := time.Date(2026, 3, day, 18, 0, 0, 0, time.UTC)
		require.NoError(t, store.SaveDaySummary(ctx, domain.DaySummary{
			Date:     exit.Format("2006-01-02"),
			LastExit: &exit,
			Type:     domain.DayTypeWork,
			UserID:   "w1",
		}))
	}

	// Today the worker leaves at 14:00, four hours early
	addClosedSession(t, store, "s1", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), 360)
	require.NoError(t, agg.RebuildDaySummary(ctx, "w1", "2026-03-10"))

	summary, err := store.GetDaySummary(ctx, "w1", "2026-03-10")
	require.NoError(t, err)
	assert.Contains(t, summary.Flags, domain.FlagEarlyDeparture)
}

func TestAggregator_EmptyDayIsOff(t *testing.T) {
	agg, store, _ := newTestAggregator(t)
	ctx := context.Background()

	require.NoError(t, agg.RebuildDaySummary(ctx, "w1", "2026-03-10"))
	summary, err := store.GetDaySummary(ctx, "w1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, domain.DayTypeOff, summary.Type)
	assert.Equal(t, 0, summary.SessionsCount)
}
