package services

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"timekeeper/internal/config"
	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
	"timekeeper/internal/ports"
)

// Aggregator rebuilds day summaries from their session rows. The summary
// is a materialized view: any code that needs it in sync enqueues a
// rebuild effect rather than patching the row directly.
type Aggregator struct {
	corrections ports.CorrectionStore
	now         func() time.Time
	sessions    ports.SessionReader
	summaries   ports.SummaryStore
	tuning      config.Tuning
}

// NewAggregator creates a new Aggregator
func NewAggregator(sessions ports.SessionReader, summaries ports.SummaryStore, corrections ports.CorrectionStore, tuning config.Tuning) *Aggregator {
	return &Aggregator{
		corrections: corrections,
		now:         time.Now,
		sessions:    sessions,
		summaries:   summaries,
		tuning:      tuning,
	}
}

// RebuildDaySummary recomputes the summary for one (user, date) from
// scratch and saves it only if it differs from the stored row, so repeated
// rebuilds of an unchanged day are no-ops and don't mark the summary dirty.
func (a *Aggregator) RebuildDaySummary(ctx context.Context, userID, date string) error {
	sessions, err := a.sessions.ListSessionsByDay(ctx, userID, date)
	if err != nil {
		return fmt.Errorf("failed to list sessions for %s/%s: %w", userID, date, err)
	}

	corrected, err := a.corrections.HasActiveCorrection(ctx, userID, date)
	if err != nil {
		return fmt.Errorf("failed to check corrections for %s/%s: %w", userID, date, err)
	}

	avgExit, err := a.averageLastExit(ctx, userID, date)
	if err != nil {
		// Historical average is best effort; a missing baseline only
		// disables the early_departure flag
		logging.Logger.Warn("Failed to compute average last exit",
			"user_id", userID,
			"date", date,
			"error", err)
	}

	rebuilt := domain.BuildDaySummary(userID, date, sessions, domain.SummaryThresholds{
		AICorrected:     corrected,
		AvgLastExit:     avgExit,
		EarlyDeparture:  a.tuning.EarlyDeparture,
		NoBreakMinutes:  a.tuning.NoBreakMinutes,
		OvertimeMinutes: a.tuning.OvertimeMinutes,
	})

	existing, err := a.summaries.GetDaySummary(ctx, userID, date)
	if err != nil && err != domain.ErrSummaryNotFound {
		return fmt.Errorf("failed to load summary for %s/%s: %w", userID, date, err)
	}
	if existing != nil {
		// Operator notes live on the summary row and survive rebuilds
		rebuilt.Notes = existing.Notes
		if summariesEqual(rebuilt, *existing) {
			return nil
		}
		rebuilt.SyncedAt = existing.SyncedAt
	}

	rebuilt.UpdatedAt = a.now().UTC()
	if err := a.summaries.SaveDaySummary(ctx, rebuilt); err != nil {
		return fmt.Errorf("failed to save summary for %s/%s: %w", userID, date, err)
	}

	logging.Logger.Info("Day summary rebuilt",
		"user_id", userID,
		"date", date,
		"sessions", rebuilt.SessionsCount,
		"total_minutes", rebuilt.TotalMinutes,
		"flags", rebuilt.Flags)
	return nil
}

// averageLastExit computes the mean last-exit clock time over recent work
// days, the baseline for the early_departure flag. Returns nil when there
// is no usable history.
func (a *Aggregator) averageLastExit(ctx context.Context, userID, beforeDate string) (*time.Time, error) {
	history, err := a.summaries.ListRecentSummaries(ctx, userID, beforeDate, a.tuning.HistoryDays)
	if err != nil {
		return nil, err
	}

	var total time.Duration
	var count int
	for _, s := range history {
		if s.Type != domain.DayTypeWork || s.LastExit == nil {
			continue
		}
		total += clockTime(*s.LastExit)
		count++
	}
	if count == 0 {
		return nil, nil
	}

	avg := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(total / time.Duration(count))
	return &avg, nil
}

// summariesEqual compares the derived content of two summaries, ignoring
// the bookkeeping timestamps
func summariesEqual(a, b domain.DaySummary) bool {
	a.SyncedAt, b.SyncedAt = nil, nil
	a.UpdatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	if len(a.Flags) == 0 && len(b.Flags) == 0 {
		a.Flags, b.Flags = nil, nil
	}
	if len(a.SourceMix) == 0 && len(b.SourceMix) == 0 {
		a.SourceMix, b.SourceMix = nil, nil
	}
	return reflect.DeepEqual(a, b)
}

func clockTime(t time.Time) time.Duration {
	u := t.UTC()
	return time.Duration(u.Hour())*time.Hour +
		time.Duration(u.Minute())*time.Minute +
		time.Duration(u.Second())*time.Second
}
