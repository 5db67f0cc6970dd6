package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
)

// TrackCmd spools a manual enter/exit signal. The running daemon picks it
// up through the spool watcher; with no daemon running the file waits
// until the next start, which is the point of spooling.
type TrackCmd struct {
	Type   string  `arg:"" help:"Signal type" enum:"enter,exit"`
	User   string  `help:"Worker identifier" required:""`
	Fence  string  `help:"Geofence identifier" required:""`
	Source string  `help:"Signal source" default:"manual" enum:"sdk,headless,watchdog,gps_check,manual,voice"`
	At     string  `help:"Event time (RFC3339, defaults to now)"`
	Lat    float64 `help:"Latitude of the GPS fix" default:"0"`
	Lon    float64 `help:"Longitude of the GPS fix" default:"0"`
	AccM   float64 `help:"GPS accuracy in meters" default:"0"`
}

// Run writes the signal file into the spool directory
func (t *TrackCmd) Run(cli *CLI) error {
	occurredAt := time.Now().UTC()
	if t.At != "" {
		parsed, err := time.Parse(time.RFC3339, t.At)
		if err != nil {
			return fmt.Errorf("invalid --at time: %w", err)
		}
		occurredAt = parsed.UTC()
	}

	raw := domain.RawSignal{
		AccuracyM:  t.AccM,
		FenceID:    t.Fence,
		OccurredAt: occurredAt,
		Source:     domain.Source(t.Source),
		Type:       domain.EventType(t.Type),
		UserID:     t.User,
	}
	if t.Lat != 0 || t.Lon != 0 {
		raw.Latitude = &t.Lat
		raw.Longitude = &t.Lon
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}

	dir := cli.SpoolDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create spool dir: %w", err)
	}

	// Write then rename so the watcher never reads a partial file
	name := fmt.Sprintf("%d-%s.json", occurredAt.Unix(), uuid.NewString())
	tmp := filepath.Join(dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write signal: %w", err)
	}
	final := filepath.Join(dir, name)
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("failed to publish signal: %w", err)
	}

	logging.Logger.Info("Signal spooled",
		"user_id", t.User,
		"type", t.Type,
		"fence_id", t.Fence,
		"path", final)
	fmt.Printf("Spooled %s signal for %s at %s\n", t.Type, t.User, occurredAt.Format(time.RFC3339))
	return nil
}
