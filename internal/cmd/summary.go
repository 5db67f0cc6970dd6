package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"timekeeper/internal/domain"
	"timekeeper/internal/theme"
)

// SummaryCmd shows or rebuilds day summaries
type SummaryCmd struct {
	Show    SummaryShowCmd    `cmd:"show" help:"Show a day summary" default:"1"`
	Rebuild SummaryRebuildCmd `cmd:"rebuild" help:"Force a summary rebuild from sessions"`
}

// SummaryShowCmd shows one day summary
type SummaryShowCmd struct {
	User string `arg:"" help:"Worker identifier"`
	Date string `help:"Day to show (YYYY-MM-DD, defaults to today)"`
}

// Run executes the summary show command
func (s *SummaryShowCmd) Run(cli *CLI) error {
	date := s.Date
	if date == "" {
		date = domain.DayOf(time.Now())
	}

	summary, err := cli.Container.Store.GetDaySummary(context.Background(), s.User, date)
	if err != nil {
		if err == domain.ErrSummaryNotFound {
			fmt.Println(theme.MutedStyle.Render("No summary for " + date))
			return nil
		}
		return err
	}

	fmt.Println(theme.TitleStyle.Render(fmt.Sprintf("Day summary - %s", date)))
	printRow("Worker", summary.UserID)
	printRow("Type", summary.Type)
	printRow("Sessions", fmt.Sprintf("%d", summary.SessionsCount))
	printRow("Total", fmt.Sprintf("%dh %02dm", summary.TotalMinutes/60, summary.TotalMinutes%60))
	printRow("Breaks", fmt.Sprintf("%d min", summary.BreakMinutes))
	if summary.FirstEntry != nil {
		printRow("First entry", summary.FirstEntry.Local().Format("15:04"))
	}
	if summary.LastExit != nil {
		printRow("Last exit", summary.LastExit.Local().Format("15:04"))
	}
	if summary.PrimaryLocation != "" {
		printRow("Location", summary.PrimaryLocation)
	}
	if len(summary.Flags) > 0 {
		rendered := make([]string, len(summary.Flags))
		for i, flag := range summary.Flags {
			rendered[i] = theme.FlagStyle(flag).Render(flag)
		}
		printRow("Flags", strings.Join(rendered, " "))
	}
	if len(summary.SourceMix) > 0 {
		var parts []string
		for source, minutes := range summary.SourceMix {
			parts = append(parts, fmt.Sprintf("%s:%dm", source, minutes))
		}
		printRow("Sources", strings.Join(parts, " "))
	}
	if summary.Notes != "" {
		printRow("Notes", summary.Notes)
	}
	return nil
}

// SummaryRebuildCmd forces a rebuild from the day's sessions
type SummaryRebuildCmd struct {
	User string `arg:"" help:"Worker identifier"`
	Date string `help:"Day to rebuild (YYYY-MM-DD, defaults to today)"`
}

// Run executes the summary rebuild command
func (s *SummaryRebuildCmd) Run(cli *CLI) error {
	date := s.Date
	if date == "" {
		date = domain.DayOf(time.Now())
	}
	if err := cli.Container.Aggregator.RebuildDaySummary(context.Background(), s.User, date); err != nil {
		return err
	}
	fmt.Printf("Summary rebuilt for %s/%s\n", s.User, date)
	return nil
}
