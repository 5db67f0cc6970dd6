package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"timekeeper/internal/domain"
	"timekeeper/internal/theme"
)

// FencesCmd manages geofence locations
type FencesCmd struct {
	Add     FencesAddCmd     `cmd:"add" help:"Add a geofence location"`
	List    FencesListCmd    `cmd:"list" help:"List geofence locations" default:"1"`
	Disable FencesDisableCmd `cmd:"disable" help:"Deactivate a fence without deleting it"`
}

// FencesAddCmd adds a geofence location
type FencesAddCmd struct {
	User    string  `help:"Worker identifier" required:""`
	Name    string  `arg:"" help:"Location name"`
	Lat     float64 `help:"Latitude of the fence center" required:""`
	Lon     float64 `help:"Longitude of the fence center" required:""`
	RadiusM float64 `help:"Fence radius in meters" default:"100"`
	Color   string  `help:"Display color"`
}

// Run executes the fences add command
func (f *FencesAddCmd) Run(cli *CLI) error {
	now := time.Now().UTC()
	fence := domain.GeofenceLocation{
		Active:    true,
		Color:     f.Color,
		CreatedAt: now,
		ID:        uuid.NewString(),
		Latitude:  f.Lat,
		Longitude: f.Lon,
		Name:      f.Name,
		RadiusM:   f.RadiusM,
		UpdatedAt: now,
		UserID:    f.User,
	}
	if err := cli.Container.Store.SaveFence(context.Background(), fence); err != nil {
		return fmt.Errorf("failed to save fence: %w", err)
	}
	fmt.Printf("Fence %s created (%s)\n", f.Name, fence.ID)
	return nil
}

// FencesListCmd lists geofence locations
type FencesListCmd struct {
	User string `arg:"" help:"Worker identifier"`
}

// Run executes the fences list command
func (f *FencesListCmd) Run(cli *CLI) error {
	fences, err := cli.Container.Store.ListFences(context.Background(), f.User)
	if err != nil {
		return err
	}

	fmt.Println(theme.TitleStyle.Render("Geofences"))
	if len(fences) == 0 {
		fmt.Println(theme.MutedStyle.Render("No fences."))
		return nil
	}

	fmt.Println("ID        Name                 Radius   Active")
	fmt.Println(strings.Repeat("─", 55))
	for _, fence := range fences {
		active := theme.TrackingStyle.Render("yes")
		if !fence.Active {
			active = theme.MutedStyle.Render("no")
		}
		fmt.Printf("%-8s  %-19s  %-7s  %s\n",
			shortID(fence.ID),
			fence.Name,
			fmt.Sprintf("%.0fm", fence.RadiusM),
			active)
	}
	return nil
}

// FencesDisableCmd deactivates a fence
type FencesDisableCmd struct {
	User string `help:"Worker identifier" required:""`
	ID   string `arg:"" help:"Fence identifier"`
}

// Run executes the fences disable command
func (f *FencesDisableCmd) Run(cli *CLI) error {
	ctx := context.Background()
	fence, err := cli.Container.Store.GetFence(ctx, f.User, f.ID)
	if err != nil {
		return err
	}
	fence.Active = false
	fence.UpdatedAt = time.Now().UTC()
	if err := cli.Container.Store.SaveFence(ctx, *fence); err != nil {
		return err
	}
	fmt.Printf("Fence %s disabled\n", fence.Name)
	return nil
}
