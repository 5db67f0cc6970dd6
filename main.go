package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"timekeeper/internal/cmd"
	"timekeeper/internal/config"
	"timekeeper/version"
)

func main() {
	// Settings load before parsing so they can fill flag defaults
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var cli cmd.CLI
	cli.SetSettings(settings)
	ctx := kong.Parse(&cli,
		kong.Name("timekeeper"),
		kong.Description(version.Tagline),
		kong.UsageOnError(),
		kong.Vars{"version": version.Info()},
	)
	defer cli.Close()

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
