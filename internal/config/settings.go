package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Defaults for engine tunables. The debounce window and the summary
// thresholds are deliberately configuration, not constants.
const (
	DefaultDebounceSeconds       = 180
	DefaultEarlyDepartureMinutes = 90
	DefaultEffectBackoffSeconds  = 30
	DefaultEffectMaxRetries      = 5
	DefaultGuardHours            = 12
	DefaultHistoryDays           = 30
	DefaultNoBreakMinutes        = 360
	DefaultOvertimeMinutes       = 480
	DefaultSyncIntervalMinutes   = 15
)

// Settings represents the structure of $TIMEKEEPER_HOME/settings.json.
// Pointer fields distinguish "unset" from an explicit zero.
type Settings struct {
	DBPath                string `json:"db_path,omitempty"`
	Debug                 *bool  `json:"debug,omitempty"`
	DebounceSeconds       *int   `json:"debounce_seconds,omitempty"`
	EarlyDepartureMinutes *int   `json:"early_departure_minutes,omitempty"`
	EffectBackoffSeconds  *int   `json:"effect_backoff_seconds,omitempty"`
	EffectMaxRetries      *int   `json:"effect_max_retries,omitempty"`
	GuardHours            *int   `json:"guard_hours,omitempty"`
	HistoryDays           *int   `json:"history_days,omitempty"`
	MaxLogFiles           *int   `json:"max_log_files,omitempty"`
	NoBreakMinutes        *int   `json:"no_break_minutes,omitempty"`
	OvertimeMinutes       *int   `json:"overtime_minutes,omitempty"`
	SpoolDir              string `json:"spool_dir,omitempty"`
	SyncIntervalMinutes   *int   `json:"sync_interval_minutes,omitempty"`
	SyncToken             string `json:"sync_token,omitempty"`
	SyncURL               string `json:"sync_url,omitempty"`
}

// Tuning holds the resolved engine tunables consumed by services
type Tuning struct {
	DebounceWindow   time.Duration
	EarlyDeparture   time.Duration
	EffectBackoff    time.Duration
	EffectMaxRetries int
	GuardDuration    time.Duration
	HistoryDays      int
	NoBreakMinutes   int64
	OvertimeMinutes  int64
	SyncInterval     time.Duration
}

// Tuning resolves settings into concrete values with defaults applied
func (s *Settings) Tuning() Tuning {
	return Tuning{
		DebounceWindow:   time.Duration(intOr(s.DebounceSeconds, DefaultDebounceSeconds)) * time.Second,
		EarlyDeparture:   time.Duration(intOr(s.EarlyDepartureMinutes, DefaultEarlyDepartureMinutes)) * time.Minute,
		EffectBackoff:    time.Duration(intOr(s.EffectBackoffSeconds, DefaultEffectBackoffSeconds)) * time.Second,
		EffectMaxRetries: intOr(s.EffectMaxRetries, DefaultEffectMaxRetries),
		GuardDuration:    time.Duration(intOr(s.GuardHours, DefaultGuardHours)) * time.Hour,
		HistoryDays:      intOr(s.HistoryDays, DefaultHistoryDays),
		NoBreakMinutes:   int64(intOr(s.NoBreakMinutes, DefaultNoBreakMinutes)),
		OvertimeMinutes:  int64(intOr(s.OvertimeMinutes, DefaultOvertimeMinutes)),
		SyncInterval:     time.Duration(intOr(s.SyncIntervalMinutes, DefaultSyncIntervalMinutes)) * time.Minute,
	}
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

// LoadSettings loads settings from $TIMEKEEPER_HOME/settings.json.
// Returns empty Settings if the file doesn't exist (not an error).
func LoadSettings() (*Settings, error) {
	path := GetSettingsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil // Not an error, use defaults
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("invalid settings.json: %w", err)
	}

	if settings.DBPath != "" {
		settings.DBPath = ExpandPath(settings.DBPath)
	}
	if settings.SpoolDir != "" {
		settings.SpoolDir = ExpandPath(settings.SpoolDir)
	}

	return &settings, nil
}

// SaveSettings saves settings to $TIMEKEEPER_HOME/settings.json
func SaveSettings(settings *Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(GetSettingsPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}
