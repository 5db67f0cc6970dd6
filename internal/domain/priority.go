package domain

import "time"

// SourcePriority ranks sources for conflict arbitration.
// Higher values win; unknown sources rank lowest.
func SourcePriority(s Source) int {
	switch s {
	case SourceVoice:
		return 4
	case SourceManual, SourceEdited:
		return 3
	case SourceSecretary:
		return 2
	case SourceSDK, SourceHeadless, SourceWatchdog, SourceGPSCheck:
		return 1
	default:
		return 0
	}
}

// Wins reports whether a candidate value may overwrite the incumbent value
// of a field. A strictly higher priority always wins; equal priority is
// resolved by recency (a candidate at least as recent as the incumbent wins).
// A lower priority never wins.
func Wins(candidate Source, candidateAt time.Time, incumbent Source, incumbentAt time.Time) bool {
	cp, ip := SourcePriority(candidate), SourcePriority(incumbent)
	if cp != ip {
		return cp > ip
	}
	return !candidateAt.Before(incumbentAt)
}
