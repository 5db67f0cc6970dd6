package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"timekeeper/internal/domain"
	"timekeeper/internal/theme"
)

// CorrectionsCmd audits and reverts applied corrections
type CorrectionsCmd struct {
	List   CorrectionsListCmd   `cmd:"list" help:"List corrections for a session or day" default:"1"`
	Revert CorrectionsRevertCmd `cmd:"revert" help:"Revert one applied correction"`
}

// CorrectionsListCmd lists corrections
type CorrectionsListCmd struct {
	Session string `help:"Session identifier" xor:"scope"`
	User    string `help:"Worker identifier (with --date)" xor:"scope"`
	Date    string `help:"Day to list (YYYY-MM-DD, defaults to today)"`
}

// Run executes the corrections list command
func (c *CorrectionsListCmd) Run(cli *CLI) error {
	ctx := context.Background()

	var corrections []domain.AICorrection
	var err error
	switch {
	case c.Session != "":
		corrections, err = cli.Container.Corrector.ListBySession(ctx, c.Session)
	case c.User != "":
		date := c.Date
		if date == "" {
			date = domain.DayOf(time.Now())
		}
		corrections, err = cli.Container.Corrector.ListByDate(ctx, c.User, date)
	default:
		return fmt.Errorf("either --session or --user is required")
	}
	if err != nil {
		return err
	}

	fmt.Println(theme.TitleStyle.Render("Corrections"))
	if len(corrections) == 0 {
		fmt.Println(theme.MutedStyle.Render("No corrections."))
		return nil
	}

	fmt.Println("ID        Field          Source     Old → New")
	fmt.Println(strings.Repeat("─", 70))
	for _, corr := range corrections {
		state := ""
		if corr.Reverted {
			state = theme.MutedStyle.Render(" (reverted)")
		}
		fmt.Printf("%-8s  %-13s  %-9s  %s → %s%s\n",
			shortID(corr.ID),
			corr.Field,
			corr.Source,
			corr.OriginalValue,
			corr.CorrectedValue,
			state)
	}
	return nil
}

// CorrectionsRevertCmd reverts one applied correction
type CorrectionsRevertCmd struct {
	ID string `arg:"" help:"Correction identifier"`
}

// Run executes the corrections revert command
func (c *CorrectionsRevertCmd) Run(cli *CLI) error {
	ctx := context.Background()
	if err := cli.Container.Corrector.Revert(ctx, c.ID); err != nil {
		return err
	}
	if err := cli.Container.Effects.DrainOnce(ctx); err != nil {
		return err
	}
	fmt.Println(theme.ValueStyle.Render("Correction reverted"))
	return nil
}
