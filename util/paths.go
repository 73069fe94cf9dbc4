package util

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	AppConfigDir = ".config/copse"
)

// GetConfigDir returns ~/.config/copse/, creating it when missing.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}

	configDir := filepath.Join(homeDir, AppConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create config directory")
	}
	return configDir, nil
}

// ResolveFilePath prefers ./filename, then ~/.config/copse/filename. When
// neither exists the user config path is returned so the file can be created
// there.
func ResolveFilePath(filename string) string {
	if fileExists(filename) {
		return filename
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return filename
	}
	return filepath.Join(configDir, filename)
}

// ResolveDatabasePath resolves a relative database file like ResolveFilePath.
// Absolute paths and ":memory:" are used as given.
func ResolveDatabasePath(name string) string {
	if name == ":memory:" || filepath.IsAbs(name) {
		return name
	}
	return ResolveFilePath(name)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
