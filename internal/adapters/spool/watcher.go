package spool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
)

// Ingestor accepts raw signals for processing. Errors are per-signal and
// non-fatal to the watcher.
type Ingestor interface {
	Ingest(ctx context.Context, raw domain.RawSignal) error
}

// Watcher tails a spool directory for signal files dropped by external
// producers (the mobile SDK bridge, the watchdog cron, manual tooling).
// Each .json file holds one RawSignal; files are deleted after ingestion
// or moved to rejected/ when unreadable.
type Watcher struct {
	dir      string
	ingestor Ingestor
}

// NewWatcher creates a new Watcher for the given spool directory
func NewWatcher(dir string, ingestor Ingestor) *Watcher {
	return &Watcher{
		dir:      dir,
		ingestor: ingestor,
	}
}

// Run watches the spool until the context is cancelled. Files already
// present at startup are processed first, so signals spooled while the
// daemon was down are not lost.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create spool dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(w.dir, "rejected"), 0755); err != nil {
		return fmt.Errorf("failed to create rejected dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("spool watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("spool watcher add %s: %w", w.dir, err)
	}

	w.catchUp(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				w.processFile(ctx, ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Logger.Warn("Spool watcher error", "error", err)
		}
	}
}

// catchUp processes signal files that accumulated while nothing was watching
func (w *Watcher) catchUp(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logging.Logger.Warn("Failed to scan spool dir", "dir", w.dir, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.processFile(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) processFile(ctx context.Context, path string) {
	if !strings.HasSuffix(path, ".json") {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already consumed by an earlier event for the same file
			return
		}
		logging.Logger.Warn("Failed to read spool file", "path", path, "error", err)
		return
	}

	var raw domain.RawSignal
	if err := json.Unmarshal(data, &raw); err != nil {
		logging.Logger.Warn("Rejecting unparseable spool file", "path", path, "error", err)
		w.reject(path)
		return
	}

	if err := w.ingestor.Ingest(ctx, raw); err != nil {
		logging.Logger.Warn("Rejecting invalid signal",
			"path", path,
			"user_id", raw.UserID,
			"error", err)
		w.reject(path)
		return
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Logger.Warn("Failed to remove consumed spool file", "path", path, "error", err)
	}
}

// reject moves a bad file aside instead of deleting it, so producers can
// inspect what they sent
func (w *Watcher) reject(path string) {
	dest := filepath.Join(w.dir, "rejected", filepath.Base(path))
	if err := os.Rename(path, dest); err != nil && !os.IsNotExist(err) {
		logging.Logger.Warn("Failed to move rejected spool file", "path", path, "error", err)
	}
}
