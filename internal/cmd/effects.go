package cmd

import (
	"context"
	"fmt"
	"strings"

	"timekeeper/internal/theme"
)

// EffectsCmd inspects the durable effects queue
type EffectsCmd struct {
	Failed EffectsFailedCmd `cmd:"failed" help:"List terminally failed effects" default:"1"`
	Drain  EffectsDrainCmd  `cmd:"drain" help:"Execute everything currently due"`
}

// EffectsFailedCmd lists terminally failed effects
type EffectsFailedCmd struct{}

// Run executes the effects failed command
func (e *EffectsFailedCmd) Run(cli *CLI) error {
	failed, err := cli.Container.Store.ListFailedEffects(context.Background())
	if err != nil {
		return err
	}

	fmt.Println(theme.TitleStyle.Render("Failed effects"))
	if len(failed) == 0 {
		fmt.Println(theme.MutedStyle.Render("No failed effects."))
		return nil
	}

	fmt.Println("ID        Type                  Retries  Payload")
	fmt.Println(strings.Repeat("─", 70))
	for _, effect := range failed {
		fmt.Printf("%-8s  %-20s  %-7d  %s\n",
			shortID(effect.ID),
			effect.Type,
			effect.RetryCount,
			string(effect.Payload))
	}
	return nil
}

// EffectsDrainCmd executes everything currently due
type EffectsDrainCmd struct{}

// Run executes the effects drain command
func (e *EffectsDrainCmd) Run(cli *CLI) error {
	if err := cli.Container.Effects.DrainOnce(context.Background()); err != nil {
		return err
	}
	fmt.Println("Queue drained")
	return nil
}
