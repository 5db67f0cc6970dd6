package cmd

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"timekeeper/internal/config"
	"timekeeper/internal/logging"
)

// CLI represents the command-line interface structure
type CLI struct {
	Version     kong.VersionFlag `help:"Show version information"`
	Debug       bool             `help:"Enable debug logging to file" short:"d"`
	DebugFile   string           `help:"Custom path for debug log file (disables automatic cleanup)"`
	MaxLogFiles int              `help:"Maximum number of log files to keep (0 = unlimited)" default:"1000"`

	Run         RunCmd         `cmd:"" help:"Start the tracking daemon (default)" default:"1"`
	Track       TrackCmd       `cmd:"track" help:"Spool a manual enter/exit signal"`
	Status      StatusCmd      `cmd:"status" help:"Show live tracking state for a worker"`
	Sessions    SessionsCmd    `cmd:"sessions" help:"Inspect and correct work sessions"`
	Summary     SummaryCmd     `cmd:"summary" help:"Show or rebuild day summaries"`
	Sync        SyncCmd        `cmd:"sync" help:"Reconcile with the remote backend now"`
	Corrections CorrectionsCmd `cmd:"corrections" help:"Audit and revert applied corrections"`
	Fences      FencesCmd      `cmd:"fences" help:"Manage geofence locations"`
	Effects     EffectsCmd     `cmd:"effects" help:"Inspect the durable effects queue" hidden:""`

	// Internal fields (not flags)
	Container *Container       `kong:"-"`
	settings  *config.Settings `kong:"-"`
}

// SetSettings sets the settings on the CLI struct
func (c *CLI) SetSettings(settings *config.Settings) {
	c.settings = settings
}

// AfterApply initializes logging after CLI parsing and applies settings
func (c *CLI) AfterApply() error {
	// Precedence: CLI flags > env vars > settings.json > defaults
	if c.settings != nil {
		if c.MaxLogFiles == 1000 {
			if _, hasEnv := os.LookupEnv("TIMEKEEPER_MAX_LOG_FILES"); !hasEnv {
				if c.settings.MaxLogFiles != nil {
					c.MaxLogFiles = *c.settings.MaxLogFiles
				}
			}
		}
		if !c.Debug {
			if _, hasEnv := os.LookupEnv("TIMEKEEPER_DEBUG"); !hasEnv {
				if c.settings.Debug != nil && *c.settings.Debug {
					c.Debug = true
				}
			}
		}
	}

	logFilePath, err := logging.Initialize(c.Debug, c.DebugFile, c.MaxLogFiles)
	if err != nil {
		return err
	}

	// Propagate debug settings so spawned helpers append to the same file
	if c.Debug || c.DebugFile != "" {
		os.Setenv("TIMEKEEPER_DEBUG", "1")
		if logFilePath != "" {
			os.Setenv("TIMEKEEPER_DEBUG_FILE", logFilePath)
		}
	}
	if c.MaxLogFiles != 1000 {
		os.Setenv("TIMEKEEPER_MAX_LOG_FILES", fmt.Sprintf("%d", c.MaxLogFiles))
	}

	if c.settings == nil {
		settings, err := config.LoadSettings()
		if err != nil {
			return err
		}
		c.settings = settings
	}

	// Create container after logging is initialized so the GORM logger
	// never sees a nil logging.Logger
	container, err := NewContainer(c.settings)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	c.Container = container

	return nil
}

// Close closes all resources held by the CLI
func (c *CLI) Close() error {
	if c.Container != nil {
		return c.Container.Close()
	}
	return nil
}

// SpoolDir resolves the spool directory from settings or the default
func (c *CLI) SpoolDir() string {
	if c.settings != nil && c.settings.SpoolDir != "" {
		return c.settings.SpoolDir
	}
	return config.GetSpoolDir()
}
