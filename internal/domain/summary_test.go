package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedSession(enter time.Time, minutes int64, breakSeconds int64, location string, source Source) WorkSession {
	exit := enter.Add(time.Duration(minutes)*time.Minute + time.Duration(breakSeconds)*time.Second)
	s := WorkSession{
		BreakSeconds: breakSeconds,
		EnterAt:      enter,
		LocationName: location,
		Source:       source,
	}
	s.Close(exit)
	return s
}

func TestBuildDaySummary_Empty(t *testing.T) {
	summary := BuildDaySummary("w1", "2026-03-10", nil, SummaryThresholds{})

	assert.Equal(t, DayTypeOff, summary.Type)
	assert.Equal(t, 0, summary.SessionsCount)
	assert.Nil(t, summary.FirstEntry)
	assert.Nil(t, summary.LastExit)
	assert.Empty(t, summary.Flags)
}

func TestBuildDaySummary_SkipsOpenAndDeleted(t *testing.T) {
	enter := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	deleted := closedSession(enter, 60, 0, "Office", SourceSDK)
	deletedAt := enter.Add(2 * time.Hour)
	deleted.DeletedAt = &deletedAt

	sessions := []WorkSession{
		{EnterAt: enter, LocationName: "Office", Source: SourceSDK}, // open
		deleted,
		closedSession(enter.Add(3*time.Hour), 120, 0, "Office", SourceSDK),
	}

	summary := BuildDaySummary("w1", "2026-03-10", sessions, SummaryThresholds{})
	assert.Equal(t, 1, summary.SessionsCount)
	assert.Equal(t, int64(120), summary.TotalMinutes)
}

func TestBuildDaySummary_Totals(t *testing.T) {
	enter := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	sessions := []WorkSession{
		closedSession(enter, 240, 120, "Office", SourceSDK),
		closedSession(enter.Add(5*time.Hour), 180, 0, "Warehouse", SourceManual),
	}

	summary := BuildDaySummary("w1", "2026-03-10", sessions, SummaryThresholds{})

	assert.Equal(t, DayTypeWork, summary.Type)
	assert.Equal(t, 2, summary.SessionsCount)
	assert.Equal(t, int64(420), summary.TotalMinutes)
	assert.Equal(t, int64(2), summary.BreakMinutes)
	require.NotNil(t, summary.FirstEntry)
	assert.Equal(t, enter, *summary.FirstEntry)
	require.NotNil(t, summary.LastExit)
	assert.Equal(t, "Office", summary.PrimaryLocation)
	assert.Equal(t, int64(240), summary.SourceMix[SourceSDK])
	assert.Equal(t, int64(180), summary.SourceMix[SourceManual])
}

func TestBuildDaySummary_PrimaryLocationTieBreaksByName(t *testing.T) {
	enter := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	sessions := []WorkSession{
		closedSession(enter, 60, 0, "Warehouse", SourceSDK),
		closedSession(enter.Add(2*time.Hour), 60, 0, "Office", SourceSDK),
	}

	summary := BuildDaySummary("w1", "2026-03-10", sessions, SummaryThresholds{})
	assert.Equal(t, "Office", summary.PrimaryLocation)
}

func TestBuildDaySummary_Flags(t *testing.T) {
	enter := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	avgExit := time.Date(2000, 1, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		sessions   []WorkSession
		thresholds SummaryThresholds
		expected   []string
	}{
		{
			"overtime",
			[]WorkSession{closedSession(enter, 500, 3600, "Office", SourceSDK)},
			SummaryThresholds{OvertimeMinutes: 480, NoBreakMinutes: 360},
			[]string{FlagOvertime},
		},
		{
			"no break on long day",
			[]WorkSession{closedSession(enter, 400, 0, "Office", SourceSDK)},
			SummaryThresholds{OvertimeMinutes: 480, NoBreakMinutes: 360},
			[]string{FlagNoBreak},
		},
		{
			"ai corrected",
			[]WorkSession{closedSession(enter, 60, 0, "Office", SourceSDK)},
			SummaryThresholds{AICorrected: true},
			[]string{FlagAICorrected},
		},
		{
			"early departure",
			[]WorkSession{closedSession(enter, 360, 0, "Office", SourceSDK)}, // exits 14:00
			SummaryThresholds{AvgLastExit: &avgExit, EarlyDeparture: 90 * time.Minute},
			[]string{FlagEarlyDeparture},
		},
		{
			"departure within tolerance",
			[]WorkSession{closedSession(enter, 570, 0, "Office", SourceSDK)}, // exits 17:30
			SummaryThresholds{AvgLastExit: &avgExit, EarlyDeparture: 90 * time.Minute},
			nil,
		},
		{
			"flags sorted",
			[]WorkSession{closedSession(enter, 500, 0, "Office", SourceSDK)},
			SummaryThresholds{AICorrected: true, OvertimeMinutes: 480, NoBreakMinutes: 360},
			[]string{FlagAICorrected, FlagNoBreak, FlagOvertime},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := BuildDaySummary("w1", "2026-03-10", tt.sessions, tt.thresholds)
			assert.Equal(t, tt.expected, summary.Flags)
		})
	}
}

func TestBuildDaySummary_Deterministic(t *testing.T) {
	enter := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	sessions := []WorkSession{
		closedSession(enter, 240, 120, "Office", SourceSDK),
		closedSession(enter.Add(5*time.Hour), 180, 0, "Warehouse", SourceManual),
	}
	th := SummaryThresholds{OvertimeMinutes: 480, NoBreakMinutes: 360}

	first := BuildDaySummary("w1", "2026-03-10", sessions, th)
	second := BuildDaySummary("w1", "2026-03-10", sessions, th)
	assert.Equal(t, first, second)
}

func TestDayOf(t *testing.T) {
	// A late-evening local time can land on the next UTC day
	lisbon := time.Date(2026, 3, 10, 23, 30, 0, 0, time.FixedZone("WET-DST", -3600))
	assert.Equal(t, "2026-03-11", DayOf(lisbon))
	assert.Equal(t, "2026-03-10", DayOf(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
}
