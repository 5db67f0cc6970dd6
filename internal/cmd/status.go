package cmd

import (
	"context"
	"fmt"
	"time"

	"timekeeper/internal/domain"
	"timekeeper/internal/theme"
)

// StatusCmd shows the live tracking state for one worker
type StatusCmd struct {
	User string `arg:"" help:"Worker identifier"`
}

// Run executes the status command
func (s *StatusCmd) Run(cli *CLI) error {
	st, err := cli.Container.Store.GetActiveTracking(context.Background(), s.User)
	if err != nil {
		return fmt.Errorf("failed to load tracking state: %w", err)
	}

	fmt.Println(theme.TitleStyle.Render("Tracking status"))
	printRow("Worker", st.UserID)
	printRow("Status", theme.StatusStyle(string(st.Status)).Render(string(st.Status)))

	if st.Status == domain.StatusIdle {
		return nil
	}

	printRow("Location", st.LocationName)
	printRow("Session", st.SessionID)
	if st.EnterAt != nil {
		printRow("Entered", st.EnterAt.Local().Format(time.RFC3339))
	}
	if st.PauseSeconds > 0 {
		printRow("Pause", (time.Duration(st.PauseSeconds) * time.Second).String())
	}
	if st.Status == domain.StatusExitPending && st.CooldownExpiresAt != nil {
		printRow("Cooldown ends", st.CooldownExpiresAt.Local().Format(time.RFC3339))
	}
	return nil
}

func printRow(label, value string) {
	fmt.Printf("%s %s\n",
		theme.LabelStyle.Render(fmt.Sprintf("%-14s", label)),
		theme.NormalStyle.Render(value))
}

// shortID truncates an identifier for table display. Remote-assigned IDs
// can be shorter than the local uuid format.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
