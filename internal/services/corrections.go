package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
	"timekeeper/internal/metrics"
	"timekeeper/internal/ports"
)

// Corrector applies field-level correction proposals through per-field
// priority arbitration. A proposal only lands if its source outranks
// whoever last wrote that specific field; every applied correction leaves
// an append-only audit row.
type Corrector struct {
	corrections ports.CorrectionStore
	effects     *EffectsWorker
	now         func() time.Time
	sessions    ports.SessionStore
}

// NewCorrector creates a new Corrector
func NewCorrector(sessions ports.SessionStore, corrections ports.CorrectionStore, effects *EffectsWorker) *Corrector {
	return &Corrector{
		corrections: corrections,
		effects:     effects,
		now:         time.Now,
		sessions:    sessions,
	}
}

// Propose arbitrates one proposal. Returns true if the correction was
// applied, false if the incumbent field source outranks the proposer.
func (c *Corrector) Propose(ctx context.Context, p domain.CorrectionProposal) (bool, error) {
	if !correctableField(p.Field) {
		return false, fmt.Errorf("unknown correction field %q", p.Field)
	}
	if domain.SourcePriority(p.Source) == 0 {
		return false, fmt.Errorf("%w: %q", domain.ErrUnknownSource, p.Source)
	}

	session, err := c.sessions.GetSession(ctx, p.SessionID)
	if err != nil {
		return false, err
	}
	if session.Deleted() {
		return false, fmt.Errorf("session %s is deleted", p.SessionID)
	}

	incumbent := session.Provenance(p.Field)
	if !domain.Wins(p.Source, p.ProposedAt, incumbent.Source, incumbent.UpdatedAt) {
		metrics.CorrectionsApplied.WithLabelValues(string(p.Source), "rejected").Inc()
		logging.Logger.Info("Correction rejected by field priority",
			"session_id", p.SessionID,
			"field", p.Field,
			"proposer", p.Source,
			"incumbent", incumbent.Source)
		return false, nil
	}

	original := fieldValue(*session, p.Field)
	if original == p.CorrectedValue {
		// Same value from a higher source still updates provenance so the
		// field is now protected at the new priority
		session.SetProvenance(p.Field, p.Source, p.ProposedAt)
		session.UpdatedAt = c.now().UTC()
		if err := c.sessions.UpdateSession(ctx, *session); err != nil {
			return false, err
		}
		metrics.CorrectionsApplied.WithLabelValues(string(p.Source), "applied").Inc()
		return true, nil
	}

	if err := setFieldValue(session, p.Field, p.CorrectedValue); err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", p.Field, err)
	}
	session.SetProvenance(p.Field, p.Source, p.ProposedAt)
	session.UpdatedAt = c.now().UTC()
	if err := c.sessions.UpdateSession(ctx, *session); err != nil {
		return false, err
	}

	correction := domain.AICorrection{
		CorrectedValue: p.CorrectedValue,
		CreatedAt:      c.now().UTC(),
		Date:           domain.DayOf(session.EnterAt),
		Field:          p.Field,
		ID:             uuid.NewString(),
		OriginalValue:  original,
		Reason:         p.Reason,
		SessionID:      p.SessionID,
		Source:         p.Source,
		UserID:         session.UserID,
	}
	if err := c.corrections.AppendCorrection(ctx, correction); err != nil {
		return false, err
	}

	metrics.CorrectionsApplied.WithLabelValues(string(p.Source), "applied").Inc()
	logging.Logger.Info("Correction applied",
		"session_id", p.SessionID,
		"field", p.Field,
		"source", p.Source,
		"correction_id", correction.ID)
	return true, c.afterMutation(ctx, *session)
}

// Revert undoes one correction: the original value is written back and the
// audit row flips its reverted flag, never disappears.
func (c *Corrector) Revert(ctx context.Context, correctionID string) error {
	correction, err := c.corrections.GetCorrection(ctx, correctionID)
	if err != nil {
		return err
	}
	if correction.Reverted {
		return nil
	}

	session, err := c.sessions.GetSession(ctx, correction.SessionID)
	if err != nil {
		return err
	}
	if err := setFieldValue(session, correction.Field, correction.OriginalValue); err != nil {
		return fmt.Errorf("failed to restore %s: %w", correction.Field, err)
	}
	// Reverting is an explicit human decision; the field is protected at
	// manual-edit priority from here on
	session.SetProvenance(correction.Field, domain.SourceEdited, c.now().UTC())
	session.UpdatedAt = c.now().UTC()
	if err := c.sessions.UpdateSession(ctx, *session); err != nil {
		return err
	}
	if err := c.corrections.MarkCorrectionReverted(ctx, correctionID); err != nil {
		return err
	}

	metrics.CorrectionsApplied.WithLabelValues(string(correction.Source), "reverted").Inc()
	logging.Logger.Info("Correction reverted",
		"correction_id", correctionID,
		"session_id", correction.SessionID,
		"field", correction.Field)
	return c.afterMutation(ctx, *session)
}

// ListBySession returns the audit trail for one session
func (c *Corrector) ListBySession(ctx context.Context, sessionID string) ([]domain.AICorrection, error) {
	return c.corrections.ListCorrectionsBySession(ctx, sessionID)
}

// ListByDate returns the audit trail for one day
func (c *Corrector) ListByDate(ctx context.Context, userID, date string) ([]domain.AICorrection, error) {
	return c.corrections.ListCorrectionsByDate(ctx, userID, date)
}

// afterMutation queues the downstream consequences of a changed session
func (c *Corrector) afterMutation(ctx context.Context, session domain.WorkSession) error {
	payload := domain.EffectPayload{
		Date:      domain.DayOf(session.EnterAt),
		SessionID: session.ID,
		UserID:    session.UserID,
	}
	if err := c.effects.Enqueue(ctx, domain.EffectRebuildDaySummary, payload); err != nil {
		return err
	}
	return c.effects.Enqueue(ctx, domain.EffectSyncNow, domain.EffectPayload{UserID: session.UserID})
}

func correctableField(field string) bool {
	switch field {
	case domain.FieldBreakSeconds, domain.FieldEnterAt, domain.FieldExitAt,
		domain.FieldLocationName, domain.FieldNotes:
		return true
	default:
		return false
	}
}

// fieldValue renders a session field as its audit string representation
func fieldValue(s domain.WorkSession, field string) string {
	switch field {
	case domain.FieldBreakSeconds:
		return strconv.FormatInt(s.BreakSeconds, 10)
	case domain.FieldEnterAt:
		return s.EnterAt.UTC().Format(time.RFC3339)
	case domain.FieldExitAt:
		if s.ExitAt == nil {
			return ""
		}
		return s.ExitAt.UTC().Format(time.RFC3339)
	case domain.FieldLocationName:
		return s.LocationName
	case domain.FieldNotes:
		return s.Notes
	}
	return ""
}

// setFieldValue parses and writes one field, re-deriving duration when a
// time or break field changes on a closed session
func setFieldValue(s *domain.WorkSession, field, value string) error {
	switch field {
	case domain.FieldBreakSeconds:
		secs, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		if secs < 0 {
			return fmt.Errorf("break_seconds must not be negative")
		}
		s.BreakSeconds = secs
	case domain.FieldEnterAt:
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return err
		}
		s.EnterAt = t.UTC()
	case domain.FieldExitAt:
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return err
		}
		u := t.UTC()
		s.ExitAt = &u
	case domain.FieldLocationName:
		s.LocationName = value
		return nil
	case domain.FieldNotes:
		s.Notes = value
		return nil
	default:
		return fmt.Errorf("unknown field %q", field)
	}

	if s.ExitAt != nil {
		s.Close(*s.ExitAt)
	}
	return nil
}
