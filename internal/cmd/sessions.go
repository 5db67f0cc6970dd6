package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"timekeeper/internal/domain"
	"timekeeper/internal/theme"
)

// SessionsCmd inspects and corrects work sessions
type SessionsCmd struct {
	List    SessionsListCmd    `cmd:"list" help:"List sessions for a day" default:"1"`
	View    SessionsViewCmd    `cmd:"view" help:"View one session with its field provenance"`
	Close   SessionsCloseCmd   `cmd:"close" help:"Close an open session by hand"`
	Correct SessionsCorrectCmd `cmd:"correct" help:"Propose a field correction"`
	Delete  SessionsDeleteCmd  `cmd:"delete" help:"Soft-delete a session"`
}

// SessionsListCmd lists sessions for a day
type SessionsListCmd struct {
	User string `arg:"" help:"Worker identifier"`
	Date string `help:"Day to list (YYYY-MM-DD, defaults to today)"`
}

// Run executes the sessions list command
func (s *SessionsListCmd) Run(cli *CLI) error {
	date := s.Date
	if date == "" {
		date = domain.DayOf(time.Now())
	}

	sessions, err := cli.Container.Store.ListSessionsByDay(context.Background(), s.User, date)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	fmt.Println(theme.TitleStyle.Render(fmt.Sprintf("Sessions - %s", date)))
	if len(sessions) == 0 {
		fmt.Println(theme.MutedStyle.Render("No sessions."))
		return nil
	}

	fmt.Println("ID        Enter  Exit   Duration  Break   Location")
	fmt.Println(strings.Repeat("─", 70))
	for _, sess := range sessions {
		exit := "open"
		if sess.ExitAt != nil {
			exit = sess.ExitAt.Local().Format("15:04")
		}
		fmt.Printf("%-8s  %s  %-5s  %-8s  %-6s  %s\n",
			shortID(sess.ID),
			sess.EnterAt.Local().Format("15:04"),
			exit,
			fmt.Sprintf("%dm", sess.DurationMinutes),
			fmt.Sprintf("%ds", sess.BreakSeconds),
			sess.LocationName)
	}
	return nil
}

// SessionsViewCmd shows one session with its field provenance
type SessionsViewCmd struct {
	ID string `arg:"" help:"Session identifier"`
}

// Run executes the sessions view command
func (s *SessionsViewCmd) Run(cli *CLI) error {
	session, err := cli.Container.Store.GetSession(context.Background(), s.ID)
	if err != nil {
		return err
	}

	fmt.Println(theme.TitleStyle.Render("Session " + session.ID))
	printRow("Worker", session.UserID)
	printRow("Location", session.LocationName)
	printRow("Enter", session.EnterAt.Local().Format(time.RFC3339))
	if session.ExitAt != nil {
		printRow("Exit", session.ExitAt.Local().Format(time.RFC3339))
	} else {
		printRow("Exit", theme.TrackingStyle.Render("open"))
	}
	printRow("Duration", fmt.Sprintf("%d min", session.DurationMinutes))
	printRow("Break", fmt.Sprintf("%d s", session.BreakSeconds))
	printRow("Source", string(session.Source))
	printRow("Confidence", fmt.Sprintf("%.2f", session.Confidence))
	if session.Notes != "" {
		printRow("Notes", session.Notes)
	}
	if session.Deleted() {
		printRow("Deleted", theme.ErrorStyle.Render(session.DeletedAt.Local().Format(time.RFC3339)))
	}

	if len(session.FieldSources) > 0 {
		fmt.Println()
		fmt.Println(theme.LabelStyle.Render("Field provenance:"))
		for _, field := range []string{
			domain.FieldEnterAt, domain.FieldExitAt, domain.FieldBreakSeconds,
			domain.FieldLocationName, domain.FieldNotes,
		} {
			if p, ok := session.FieldSources[field]; ok {
				fmt.Printf("  %-14s %s (%s)\n",
					field, p.Source, p.UpdatedAt.Local().Format(time.RFC3339))
			}
		}
	}
	return nil
}

// SessionsCloseCmd closes an open session by hand, for workers whose exit
// signal never arrived
type SessionsCloseCmd struct {
	ID string `arg:"" help:"Session identifier"`
	At string `help:"Exit time (RFC3339, defaults to now)"`
}

// Run executes the sessions close command
func (s *SessionsCloseCmd) Run(cli *CLI) error {
	ctx := context.Background()
	session, err := cli.Container.Store.GetSession(ctx, s.ID)
	if err != nil {
		return err
	}
	if session.ExitAt != nil {
		return fmt.Errorf("session %s is already closed", s.ID)
	}

	now := time.Now().UTC()
	exitAt := now
	if s.At != "" {
		exitAt, err = time.Parse(time.RFC3339, s.At)
		if err != nil {
			return fmt.Errorf("invalid exit time: %w", err)
		}
		exitAt = exitAt.UTC()
	}
	if exitAt.Before(session.EnterAt) {
		return fmt.Errorf("exit time %s is before the session enter time", s.At)
	}

	session.Close(exitAt)
	session.SetProvenance(domain.FieldExitAt, domain.SourceManual, now)
	session.UpdatedAt = now
	if err := cli.Container.Store.UpdateSession(ctx, *session); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	// Release the live tracking row if it still points at this session
	tracking, err := cli.Container.Store.GetActiveTracking(ctx, session.UserID)
	if err == nil && tracking.SessionID == s.ID {
		if err := cli.Container.Store.SaveActiveTracking(ctx, domain.ActiveTracking{
			Status:    domain.StatusIdle,
			UpdatedAt: now,
			UserID:    session.UserID,
		}); err != nil {
			return err
		}
	}

	payload := domain.EffectPayload{
		Date:      domain.DayOf(session.EnterAt),
		SessionID: s.ID,
		UserID:    session.UserID,
	}
	for _, effect := range []domain.EffectType{
		domain.EffectCancelSessionGuard,
		domain.EffectRebuildDaySummary,
		domain.EffectSyncNow,
	} {
		if err := cli.Container.Effects.Enqueue(ctx, effect, payload); err != nil {
			return err
		}
	}
	if err := cli.Container.Effects.DrainOnce(ctx); err != nil {
		return err
	}

	fmt.Printf("Session %s closed at %s (%d min)\n",
		s.ID, exitAt.Local().Format(time.RFC3339), session.DurationMinutes)
	return nil
}

// SessionsCorrectCmd proposes a field correction through priority arbitration
type SessionsCorrectCmd struct {
	ID     string `arg:"" help:"Session identifier"`
	Field  string `arg:"" help:"Field to correct" enum:"enter_at,exit_at,break_seconds,location_name,notes"`
	Value  string `arg:"" help:"New value (times in RFC3339)"`
	Source string `help:"Correction source" default:"manual" enum:"secretary,manual,voice"`
	Reason string `help:"Why the correction is proposed"`
}

// Run executes the sessions correct command
func (s *SessionsCorrectCmd) Run(cli *CLI) error {
	ctx := context.Background()
	applied, err := cli.Container.Corrector.Propose(ctx, domain.CorrectionProposal{
		CorrectedValue: s.Value,
		Field:          s.Field,
		ProposedAt:     time.Now().UTC(),
		Reason:         s.Reason,
		SessionID:      s.ID,
		Source:         domain.Source(s.Source),
	})
	if err != nil {
		return err
	}
	if !applied {
		fmt.Println(theme.WarningStyle.Render("Rejected: the current field source outranks " + s.Source))
		return nil
	}
	if err := cli.Container.Effects.DrainOnce(ctx); err != nil {
		return err
	}
	fmt.Println(theme.ValueStyle.Render("Correction applied"))
	return nil
}

// SessionsDeleteCmd soft-deletes a session
type SessionsDeleteCmd struct {
	ID string `arg:"" help:"Session identifier"`
}

// Run executes the sessions delete command
func (s *SessionsDeleteCmd) Run(cli *CLI) error {
	ctx := context.Background()
	session, err := cli.Container.Store.GetSession(ctx, s.ID)
	if err != nil {
		return err
	}
	if err := cli.Container.Store.SoftDeleteSession(ctx, s.ID, time.Now().UTC()); err != nil {
		return err
	}
	if err := cli.Container.Aggregator.RebuildDaySummary(ctx, session.UserID, domain.DayOf(session.EnterAt)); err != nil {
		return err
	}
	fmt.Printf("Session %s deleted\n", s.ID)
	return nil
}
