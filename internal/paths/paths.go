// Package paths resolves configuration, data, and inbox directory locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// appName is the directory name used under the platform config/data roots.
const appName = "scribo"

// DefaultInboxDirName is created under the user's home directory.
const DefaultInboxDirName = "scribo_inbox"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "SCRIBO_CONFIG_DIR"
	EnvDataDir   = "SCRIBO_DATA_DIR"
	EnvInboxDir  = "SCRIBO_INBOX_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/scribo (fallback ~/.config/scribo)
// macOS:   ~/Library/Application Support/scribo
// Windows: %APPDATA%/scribo
func DefaultConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific default data directory, where
// the outcome journal lives. Outside Linux it is the config directory.
//
// Linux:   $XDG_DATA_HOME/scribo (fallback ~/.local/share/scribo)
func DefaultDataDir() (string, error) {
	return appDir("XDG_DATA_HOME", ".local", "share")
}

// appDir returns $xdgVar/scribo on Linux, falling back to ~/<homeRel>/scribo.
// Other platforms use os.UserConfigDir.
func appDir(xdgVar string, homeRel ...string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, homeRel...), appName)...), nil
}

// DefaultInboxDir returns ~/scribo_inbox.
func DefaultInboxDir() (string, error) {
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultInboxDirName), nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > SCRIBO_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	return resolve(DefaultConfigDir, EnvConfigDir, flag)
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > SCRIBO_DATA_DIR env > DefaultDataDir().
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	return resolve(DefaultDataDir, EnvDataDir, flag, configYAMLValue)
}

// ResolveInboxDir returns the inbox directory following the precedence chain:
// flag > configYAMLValue > SCRIBO_INBOX_DIR env > DefaultInboxDir().
// config.Load passes the value merged by viper, in which the environment
// already overrides the file.
func ResolveInboxDir(flag, configYAMLValue string) (string, error) {
	return resolve(DefaultInboxDir, EnvInboxDir, flag, configYAMLValue)
}

// resolve returns the first non-empty candidate, then the env variable, then
// the default. Explicit values are made absolute after "~" expansion.
func resolve(def func() (string, error), env string, candidates ...string) (string, error) {
	if v := os.Getenv(env); v != "" {
		candidates = append(candidates, v)
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		expanded, err := ExpandHome(c)
		if err != nil {
			return "", err
		}
		return filepath.Abs(expanded)
	}
	return def()
}
