package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
	"timekeeper/internal/metrics"
	"timekeeper/internal/ports"
)

// SyncEngine reconciles the local store with the remote backend. Runs are
// single-flight per user: a sync requested while one is in flight joins
// the running call instead of starting a second.
type SyncEngine struct {
	corrections ports.CorrectionStore
	flight      singleflight.Group
	now         func() time.Time
	remote      ports.RemoteStore
	sessions    ports.SessionStore
	state       ports.SyncStateStore
	summaries   ports.SummaryStore
}

// NewSyncEngine creates a new SyncEngine
func NewSyncEngine(sessions ports.SessionStore, summaries ports.SummaryStore, corrections ports.CorrectionStore, state ports.SyncStateStore, remote ports.RemoteStore) *SyncEngine {
	return &SyncEngine{
		corrections: corrections,
		now:         time.Now,
		remote:      remote,
		sessions:    sessions,
		state:       state,
		summaries:   summaries,
	}
}

// Sync runs one reconciliation for a user. Pull first so remote wins are
// folded in before the push; the watermark only advances after everything
// committed, so an interrupted run resumes where it left off.
func (e *SyncEngine) Sync(ctx context.Context, userID string) (domain.SyncStats, error) {
	v, err, _ := e.flight.Do(userID, func() (interface{}, error) {
		return e.run(ctx, userID)
	})
	stats, _ := v.(domain.SyncStats)
	return stats, err
}

func (e *SyncEngine) run(ctx context.Context, userID string) (domain.SyncStats, error) {
	start := e.now()
	var stats domain.SyncStats

	state, err := e.state.GetSyncState(ctx, userID)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return stats, fmt.Errorf("failed to load sync state: %w", err)
	}

	changes, err := e.remote.PullChanges(ctx, userID, *state)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return stats, fmt.Errorf("failed to pull remote changes: %w", err)
	}

	downloaded, conflicts, err := e.mergeRemote(ctx, changes)
	stats.Downloaded = downloaded
	stats.Conflicts = conflicts
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return stats, err
	}

	uploaded, err := e.push(ctx, userID)
	stats.Uploaded = uploaded
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return stats, err
	}

	if err := e.state.SaveSyncState(ctx, domain.SyncState{
		LastSyncedAt: start.UTC(),
		UpdatedAt:    e.now().UTC(),
		UserID:       userID,
	}); err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return stats, fmt.Errorf("failed to save sync state: %w", err)
	}

	stats.Duration = e.now().Sub(start)
	metrics.SyncRuns.WithLabelValues("ok").Inc()
	logging.Logger.Info("Sync completed",
		"user_id", userID,
		"uploaded", stats.Uploaded,
		"downloaded", stats.Downloaded,
		"conflicts", stats.Conflicts,
		"duration_ms", stats.Duration.Milliseconds())
	return stats, nil
}

// mergeRemote folds pulled records into the local store. Sessions merge
// per field through the same priority arbitration corrections use, so a
// local voice edit survives a concurrent remote sensor write.
func (e *SyncEngine) mergeRemote(ctx context.Context, changes *domain.RemoteChanges) (int, int, error) {
	var downloaded, conflicts int

	for _, remote := range changes.Sessions {
		local, err := e.sessions.GetSession(ctx, remote.ID)
		if err == domain.ErrSessionNotFound {
			if err := e.sessions.CreateSession(ctx, remote); err != nil {
				return downloaded, conflicts, fmt.Errorf("failed to create pulled session %s: %w", remote.ID, err)
			}
			downloaded++
			continue
		}
		if err != nil {
			return downloaded, conflicts, err
		}

		merged, lost, conflicted := mergeSession(*local, remote)
		if conflicted > 0 {
			conflicts += conflicted
			metrics.SyncConflicts.Add(float64(conflicted))
		}
		if err := e.sessions.UpdateSession(ctx, merged); err != nil {
			return downloaded, conflicts, fmt.Errorf("failed to update pulled session %s: %w", remote.ID, err)
		}
		if err := e.auditLostFields(ctx, merged, lost); err != nil {
			return downloaded, conflicts, err
		}
		downloaded++
	}

	for _, remote := range changes.Summaries {
		local, err := e.summaries.GetDaySummary(ctx, remote.UserID, remote.Date)
		if err != nil && err != domain.ErrSummaryNotFound {
			return downloaded, conflicts, err
		}
		// Summaries are derived data: local dirty rows win, everything
		// else takes the remote copy
		if local != nil && local.Dirty() {
			continue
		}
		if err := e.summaries.SaveDaySummary(ctx, remote); err != nil {
			return downloaded, conflicts, fmt.Errorf("failed to save pulled summary %s/%s: %w", remote.UserID, remote.Date, err)
		}
		downloaded++
	}

	return downloaded, conflicts, nil
}

// push uploads dirty sessions and summaries concurrently, then stamps
// synced_at on success
func (e *SyncEngine) push(ctx context.Context, userID string) (int, error) {
	dirtySessions, err := e.sessions.ListDirtySessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list dirty sessions: %w", err)
	}
	dirtySummaries, err := e.summaries.ListDirtySummaries(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list dirty summaries: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if len(dirtySessions) > 0 {
		g.Go(func() error { return e.remote.PushSessions(gctx, dirtySessions) })
	}
	if len(dirtySummaries) > 0 {
		g.Go(func() error { return e.remote.PushSummaries(gctx, dirtySummaries) })
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("failed to push changes: %w", err)
	}

	now := e.now().UTC()
	if len(dirtySessions) > 0 {
		ids := make([]string, len(dirtySessions))
		for i, s := range dirtySessions {
			ids[i] = s.ID
		}
		if err := e.sessions.MarkSessionsSynced(ctx, ids, now); err != nil {
			return 0, err
		}
	}
	if len(dirtySummaries) > 0 {
		dates := make([]string, len(dirtySummaries))
		for i, s := range dirtySummaries {
			dates[i] = s.Date
		}
		if err := e.summaries.MarkSummariesSynced(ctx, userID, dates, now); err != nil {
			return 0, err
		}
	}
	return len(dirtySessions) + len(dirtySummaries), nil
}

// lostField records a local value displaced by a winning remote write
type lostField struct {
	field       string
	localSource domain.Source
	localValue  string
	remoteValue string
	source      domain.Source
}

// mergeSession reconciles a remote session copy field by field. For each
// correctable field the higher-priority provenance wins, recency breaking
// ties; displaced local values are returned so the caller can audit them.
// The count is per conflicting field.
func mergeSession(local, remote domain.WorkSession) (domain.WorkSession, []lostField, int) {
	merged := local
	var lost []lostField
	conflicted := 0

	fields := []string{
		domain.FieldBreakSeconds,
		domain.FieldEnterAt,
		domain.FieldExitAt,
		domain.FieldLocationName,
		domain.FieldNotes,
	}
	for _, field := range fields {
		localVal := fieldValue(local, field)
		remoteVal := fieldValue(remote, field)
		if localVal == remoteVal {
			continue
		}
		conflicted++

		lp := local.Provenance(field)
		rp := remote.Provenance(field)
		if domain.Wins(rp.Source, rp.UpdatedAt, lp.Source, lp.UpdatedAt) {
			if err := setFieldValue(&merged, field, remoteVal); err != nil {
				logging.Logger.Warn("Skipping unparseable remote field",
					"session_id", remote.ID,
					"field", field,
					"error", err)
				continue
			}
			merged.SetProvenance(field, rp.Source, rp.UpdatedAt)
			lost = append(lost, lostField{
				field:       field,
				localSource: lp.Source,
				localValue:  localVal,
				remoteValue: remoteVal,
				source:      rp.Source,
			})
			logging.Logger.Info("Remote value won field conflict",
				"session_id", remote.ID,
				"field", field,
				"remote_source", rp.Source,
				"local_source", lp.Source,
				"local_value", localVal,
				"remote_value", remoteVal)
		}
	}

	if remote.Deleted() && !local.Deleted() {
		merged.DeletedAt = remote.DeletedAt
	}
	return merged, lost, conflicted
}

// auditLostFields appends a correction row per displaced local value, so a
// remote write never erases data without a recoverable trace
func (e *SyncEngine) auditLostFields(ctx context.Context, session domain.WorkSession, lost []lostField) error {
	for _, lf := range lost {
		correction := domain.AICorrection{
			CorrectedValue: lf.remoteValue,
			CreatedAt:      e.now().UTC(),
			Date:           domain.DayOf(session.EnterAt),
			Field:          lf.field,
			ID:             uuid.NewString(),
			OriginalValue:  lf.localValue,
			Reason:         fmt.Sprintf("sync conflict: remote %s write displaced local %s value", lf.source, lf.localSource),
			SessionID:      session.ID,
			Source:         lf.source,
			UserID:         session.UserID,
		}
		if err := e.corrections.AppendCorrection(ctx, correction); err != nil {
			return fmt.Errorf("failed to audit sync conflict on %s/%s: %w", session.ID, lf.field, err)
		}
	}
	return nil
}
