package domain

import (
	"sort"
	"time"
)

// Summary flags
const (
	FlagAICorrected    = "ai_corrected"
	FlagEarlyDeparture = "early_departure"
	FlagNoBreak        = "no_break"
	FlagOvertime       = "overtime"
)

// Day summary types
const (
	DayTypeOff  = "off"
	DayTypeWork = "work"
)

// DayOf formats a timestamp as the summary date key (UTC calendar day)
func DayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DaySummary is one row per (user, date). It is a materialized view over
// that day's WorkSession rows, never a source of truth, and must be
// idempotently rebuildable: same input, byte-identical output.
type DaySummary struct {
	BreakMinutes    int64
	Date            string
	FirstEntry      *time.Time
	Flags           []string
	LastExit        *time.Time
	Notes           string
	PrimaryLocation string
	SessionsCount   int
	SourceMix       map[Source]int64
	SyncedAt        *time.Time
	TotalMinutes    int64
	Type            string
	UpdatedAt       time.Time
	UserID          string
}

// Dirty reports whether the summary has local changes not yet uploaded
func (d DaySummary) Dirty() bool {
	return d.SyncedAt == nil || d.UpdatedAt.After(*d.SyncedAt)
}

// SummaryThresholds are the tunables that drive summary flags
type SummaryThresholds struct {
	// AICorrected is true when a non-reverted correction touches the day
	AICorrected bool
	// AvgLastExit is the worker's historical average last-exit clock time
	// for flagging unusually early departures; nil disables the flag
	AvgLastExit *time.Time
	// EarlyDeparture is how much earlier than average counts as early
	EarlyDeparture  time.Duration
	NoBreakMinutes  int64
	OvertimeMinutes int64
}

// BuildDaySummary folds a day's sessions into a DaySummary. Pure and
// deterministic: open or soft-deleted sessions are skipped, ties on
// primary_location break by name, flags are sorted.
func BuildDaySummary(userID, date string, sessions []WorkSession, th SummaryThresholds) DaySummary {
	summary := DaySummary{
		Date:      date,
		SourceMix: make(map[Source]int64),
		Type:      DayTypeOff,
		UserID:    userID,
	}

	locationMinutes := make(map[string]int64)
	for _, s := range sessions {
		if s.Open() || s.Deleted() {
			continue
		}
		summary.SessionsCount++
		summary.TotalMinutes += s.DurationMinutes
		summary.BreakMinutes += s.BreakSeconds / 60
		summary.SourceMix[s.Source] += s.DurationMinutes
		locationMinutes[s.LocationName] += s.DurationMinutes

		enter := s.EnterAt
		if summary.FirstEntry == nil || enter.Before(*summary.FirstEntry) {
			summary.FirstEntry = &enter
		}
		exit := *s.ExitAt
		if summary.LastExit == nil || exit.After(*summary.LastExit) {
			summary.LastExit = &exit
		}
	}

	if summary.SessionsCount > 0 {
		summary.Type = DayTypeWork
	}
	summary.PrimaryLocation = primaryLocation(locationMinutes)
	summary.Flags = summaryFlags(summary, th)
	return summary
}

// primaryLocation picks the location with the most minutes, name ascending on ties
func primaryLocation(minutes map[string]int64) string {
	names := make([]string, 0, len(minutes))
	for name := range minutes {
		names = append(names, name)
	}
	sort.Strings(names)

	var best string
	var bestMinutes int64 = -1
	for _, name := range names {
		if minutes[name] > bestMinutes {
			best = name
			bestMinutes = minutes[name]
		}
	}
	return best
}

func summaryFlags(s DaySummary, th SummaryThresholds) []string {
	var flags []string
	if th.AICorrected {
		flags = append(flags, FlagAICorrected)
	}
	if th.OvertimeMinutes > 0 && s.TotalMinutes > th.OvertimeMinutes {
		flags = append(flags, FlagOvertime)
	}
	if th.NoBreakMinutes > 0 && s.TotalMinutes > th.NoBreakMinutes && s.BreakMinutes == 0 {
		flags = append(flags, FlagNoBreak)
	}
	if th.AvgLastExit != nil && s.LastExit != nil && th.EarlyDeparture > 0 {
		if clockOf(*s.LastExit)+th.EarlyDeparture <= clockOf(*th.AvgLastExit) {
			flags = append(flags, FlagEarlyDeparture)
		}
	}
	sort.Strings(flags)
	return flags
}

// clockOf reduces a timestamp to its time-of-day offset for comparing
// departure times across different dates
func clockOf(t time.Time) time.Duration {
	u := t.UTC()
	return time.Duration(u.Hour())*time.Hour +
		time.Duration(u.Minute())*time.Minute +
		time.Duration(u.Second())*time.Second
}
