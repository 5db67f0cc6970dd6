package config

import (
	"os"
	"path/filepath"
)

// GetHome returns TIMEKEEPER_HOME or ~/.timekeeper default
func GetHome() string {
	home := os.Getenv("TIMEKEEPER_HOME")
	if home == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".timekeeper"
		}
		return filepath.Join(homeDir, ".timekeeper")
	}
	return ExpandPath(home)
}

// GetDBPath returns $TIMEKEEPER_HOME/state.db
func GetDBPath() string {
	return filepath.Join(GetHome(), "state.db")
}

// GetSettingsPath returns $TIMEKEEPER_HOME/settings.json
func GetSettingsPath() string {
	return filepath.Join(GetHome(), "settings.json")
}

// GetSpoolDir returns $TIMEKEEPER_HOME/spool
func GetSpoolDir() string {
	return filepath.Join(GetHome(), "spool")
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			if len(path) == 1 {
				return homeDir
			}
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}
