package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
	"timekeeper/internal/ports"
)

// LogNotifier records worker-facing notifications in the structured log
// and appends them to a notifications feed file the UI can tail. Delivery
// to push channels is the backend's job after sync.
type LogNotifier struct {
	feedPath string
	now      func() time.Time
}

var _ ports.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a new LogNotifier. feedPath may be empty to log only.
func NewLogNotifier(feedPath string) *LogNotifier {
	return &LogNotifier{
		feedPath: feedPath,
		now:      time.Now,
	}
}

// Notify emits one notification
func (n *LogNotifier) Notify(_ context.Context, userID string, kind domain.EffectType, message string) error {
	logging.Logger.Info("Notification",
		"user_id", userID,
		"kind", kind,
		"message", message)

	if n.feedPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(n.feedPath), 0755); err != nil {
		return fmt.Errorf("failed to create notifications dir: %w", err)
	}
	f, err := os.OpenFile(n.feedPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open notifications feed: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s\t%s\t%s\t%s\n",
		n.now().UTC().Format(time.RFC3339), userID, kind, message)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	return nil
}

// Message renders the default notification text for an effect type
func Message(kind domain.EffectType, locationName string) string {
	switch kind {
	case domain.EffectNotifyArrival:
		return fmt.Sprintf("Tracking started at %s", locationName)
	case domain.EffectNotifyDeparture:
		return fmt.Sprintf("Tracking stopped at %s", locationName)
	case domain.EffectNotifyPaused:
		return fmt.Sprintf("Looks like you left %s, confirming...", locationName)
	case domain.EffectNotifyResumed:
		return fmt.Sprintf("Still at %s, tracking continues", locationName)
	case domain.EffectNotifyForgotten:
		return "Session auto-closed: no exit was recorded"
	default:
		return string(kind)
	}
}
