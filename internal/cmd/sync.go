package cmd

import (
	"context"
	"fmt"

	"timekeeper/internal/theme"
)

// SyncCmd runs one reconciliation with the remote backend
type SyncCmd struct {
	User string `arg:"" help:"Worker identifier"`
}

// Run executes the sync command
func (s *SyncCmd) Run(cli *CLI) error {
	stats, err := cli.Container.SyncEngine.Sync(context.Background(), s.User)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Println(theme.TitleStyle.Render("Sync complete"))
	printRow("Uploaded", fmt.Sprintf("%d", stats.Uploaded))
	printRow("Downloaded", fmt.Sprintf("%d", stats.Downloaded))
	printRow("Conflicts", fmt.Sprintf("%d", stats.Conflicts))
	printRow("Duration", stats.Duration.String())
	return nil
}
