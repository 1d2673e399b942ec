// Package config loads the daemon configuration from config.yaml, SCRIBO_*
// environment variables, and command-line overrides, in increasing order of
// precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/scribo/internal/backup"
	"github.com/mesh-intelligence/scribo/internal/logging"
	"github.com/mesh-intelligence/scribo/internal/paths"
	"github.com/mesh-intelligence/scribo/internal/project"
	"github.com/mesh-intelligence/scribo/internal/proposal"
	"github.com/mesh-intelligence/scribo/internal/quarantine"
	"github.com/mesh-intelligence/scribo/internal/validate"
	"github.com/mesh-intelligence/scribo/internal/watch"
	"github.com/mesh-intelligence/scribo/internal/worker"
	"github.com/mesh-intelligence/scribo/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	// FileName is the config file inside the config directory.
	FileName = "config.yaml"
	// EnvPrefix scopes environment overrides, e.g. SCRIBO_WATCH_MODE.
	EnvPrefix = "SCRIBO"
)

// Config keys.
const (
	keyInboxDir       = "inbox_dir"
	keyDataDir        = "data_dir"
	keyProposalSuffix = "proposal_suffix"
	keyQuarantineDir  = "quarantine_dir"
	keyBackupSuffix   = "backup_suffix"
	keyRootMarkers    = "root_markers"
	keyWatchMode      = "watch.mode"
	keyWatchPoll      = "watch.poll_interval"
	keyWatchScan      = "watch.scan_existing"
	keySettleDelay    = "worker.settle_delay"
	keyTestCommand    = "test.command"
	keyTestNoTests    = "test.no_tests_exit_codes"
	keyTestTimeout    = "test.timeout"
	keyFormatCommands = "format.commands"
	keyFormatTimeout  = "format.timeout"
	keyLogFile        = "log.file"
	keyLogLevel       = "log.level"
	keyLogMaxSize     = "log.max_size_mb"
	keyLogMaxBackups  = "log.max_backups"
	keyLogConsole     = "log.console"
	keyJournalEnabled = "journal.enabled"
)

// Overrides carry command-line flag values. Empty fields do not override.
type Overrides struct {
	InboxDir string
	DataDir  string
}

// Default returns the built-in configuration. Directory fields are left
// empty and resolved by Load.
func Default() types.Config {
	return types.Config{
		ProposalSuffix: proposal.DefaultSuffix,
		QuarantineDir:  quarantine.DefaultDirName,
		BackupSuffix:   backup.DefaultSuffix,
		RootMarkers:    append([]string(nil), project.DefaultMarkers...),
		Watch: types.WatchConfig{
			Mode:         types.WatchModeFSNotify,
			PollInterval: watch.DefaultPollInterval,
			ScanExisting: true,
		},
		Worker: types.WorkerConfig{
			SettleDelay: worker.DefaultSettleDelay,
		},
		Test: types.TestConfig{
			Command:          append([]string(nil), validate.DefaultTestCommand...),
			NoTestsExitCodes: []int{validate.DefaultNoTestsExitCode},
			Timeout:          validate.DefaultTestTimeout,
		},
		Format: types.FormatConfig{
			Commands: append([]string(nil), validate.DefaultFormatCommands...),
			Timeout:  validate.DefaultFormatTimeout,
		},
		Log: types.LogConfig{
			Level:      logging.DefaultLevel,
			MaxSizeMB:  logging.DefaultMaxSizeMB,
			MaxBackups: logging.DefaultMaxBackups,
			Console:    true,
		},
		Journal: types.JournalConfig{
			Enabled: true,
		},
	}
}

func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault(keyInboxDir, "")
	v.SetDefault(keyDataDir, "")
	v.SetDefault(keyProposalSuffix, d.ProposalSuffix)
	v.SetDefault(keyQuarantineDir, d.QuarantineDir)
	v.SetDefault(keyBackupSuffix, d.BackupSuffix)
	v.SetDefault(keyRootMarkers, d.RootMarkers)
	v.SetDefault(keyWatchMode, d.Watch.Mode)
	v.SetDefault(keyWatchPoll, d.Watch.PollInterval)
	v.SetDefault(keyWatchScan, d.Watch.ScanExisting)
	v.SetDefault(keySettleDelay, d.Worker.SettleDelay)
	v.SetDefault(keyTestCommand, d.Test.Command)
	v.SetDefault(keyTestNoTests, d.Test.NoTestsExitCodes)
	v.SetDefault(keyTestTimeout, d.Test.Timeout)
	v.SetDefault(keyFormatCommands, d.Format.Commands)
	v.SetDefault(keyFormatTimeout, d.Format.Timeout)
	v.SetDefault(keyLogFile, "")
	v.SetDefault(keyLogLevel, d.Log.Level)
	v.SetDefault(keyLogMaxSize, d.Log.MaxSizeMB)
	v.SetDefault(keyLogMaxBackups, d.Log.MaxBackups)
	v.SetDefault(keyLogConsole, d.Log.Console)
	v.SetDefault(keyJournalEnabled, d.Journal.Enabled)
}

// Load reads config.yaml from configDir, applies environment and flag
// overrides, resolves directories to absolute paths, and validates the
// result. configDir and a default config.yaml are created on first run; a
// missing config.yaml is not an error.
func Load(configDir string, o Overrides) (*types.Config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := EnsureDefaultFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// A command given as one string ("go test ./...") from the file or the
	// environment is split on whitespace rather than on commas.
	if s, ok := v.Get(keyTestCommand).(string); ok {
		cfg.Test.Command = strings.Fields(s)
	}
	if err := resolve(&cfg, o); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func resolve(cfg *types.Config, o Overrides) error {
	inbox, err := paths.ResolveInboxDir(o.InboxDir, cfg.InboxDir)
	if err != nil {
		return fmt.Errorf("resolve inbox dir: %w", err)
	}
	cfg.InboxDir = inbox

	data, err := paths.ResolveDataDir(o.DataDir, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = data

	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.InboxDir, logging.DefaultFileName)
	} else {
		file, err := paths.ExpandHome(cfg.Log.File)
		if err != nil {
			return fmt.Errorf("resolve log file: %w", err)
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(cfg.InboxDir, file)
		}
		cfg.Log.File = file
	}
	return nil
}

const defaultFileHeader = `# scribo configuration
#
# Every key can be overridden by an environment variable named SCRIBO_ plus
# the upper-cased key with dots replaced by underscores, e.g.
# SCRIBO_WATCH_MODE=poll. Command-line flags take precedence over both.
#
# inbox_dir defaults to ~/scribo_inbox, data_dir to the platform data
# directory, and log.file to scribo.log inside the inbox.

`

// EnsureDefaultFile writes config.yaml with the built-in defaults if the
// file does not exist in configDir. An existing file is left alone.
func EnsureDefaultFile(configDir string) error {
	path := filepath.Join(configDir, FileName)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(defaultFileHeader), data...), 0o644)
}

// Marshal renders cfg as YAML. Durations are written in their string form
// (e.g. "100ms"), which Load reads back.
func Marshal(cfg types.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&cfg); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf.Bytes(), nil
}
