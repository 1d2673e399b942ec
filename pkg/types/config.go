package types

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// Config holds everything the daemon needs to run. It is populated by the
// config loader from config.yaml, environment, and flags.
type Config struct {
	InboxDir       string   `json:"inbox_dir" yaml:"inbox_dir" mapstructure:"inbox_dir"`
	DataDir        string   `json:"data_dir" yaml:"data_dir,omitempty" mapstructure:"data_dir"`
	ProposalSuffix string   `json:"proposal_suffix" yaml:"proposal_suffix" mapstructure:"proposal_suffix"`
	QuarantineDir  string   `json:"quarantine_dir" yaml:"quarantine_dir" mapstructure:"quarantine_dir"`
	BackupSuffix   string   `json:"backup_suffix" yaml:"backup_suffix" mapstructure:"backup_suffix"`
	RootMarkers    []string `json:"root_markers" yaml:"root_markers" mapstructure:"root_markers"`

	Watch   WatchConfig   `json:"watch" yaml:"watch" mapstructure:"watch"`
	Worker  WorkerConfig  `json:"worker" yaml:"worker" mapstructure:"worker"`
	Test    TestConfig    `json:"test" yaml:"test" mapstructure:"test"`
	Format  FormatConfig  `json:"format" yaml:"format" mapstructure:"format"`
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
	Journal JournalConfig `json:"journal" yaml:"journal" mapstructure:"journal"`
}

// WatchConfig selects and tunes the directory change notifier.
type WatchConfig struct {
	Mode         string        `json:"mode" yaml:"mode" mapstructure:"mode"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`
	ScanExisting bool          `json:"scan_existing" yaml:"scan_existing" mapstructure:"scan_existing"`
}

// WorkerConfig tunes the state machine.
type WorkerConfig struct {
	SettleDelay time.Duration `json:"settle_delay" yaml:"settle_delay" mapstructure:"settle_delay"`
}

// TestConfig describes the external validation command.
type TestConfig struct {
	Command          []string      `json:"command" yaml:"command" mapstructure:"command"`
	NoTestsExitCodes []int         `json:"no_tests_exit_codes" yaml:"no_tests_exit_codes" mapstructure:"no_tests_exit_codes"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// FormatConfig lists formatter command lines, run in order. "{file}" is
// replaced by the target path.
type FormatConfig struct {
	Commands []string      `json:"commands" yaml:"commands" mapstructure:"commands"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// LogConfig controls the console and rotating file sinks.
type LogConfig struct {
	File       string `json:"file" yaml:"file,omitempty" mapstructure:"file"`
	Level      string `json:"level" yaml:"level" mapstructure:"level"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`
	Console    bool   `json:"console" yaml:"console" mapstructure:"console"`
}

// JournalConfig toggles the outcome journal.
type JournalConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// Watch modes.
const (
	WatchModeFSNotify = "fsnotify"
	WatchModePoll     = "poll"
)

// Config validation errors.
var (
	ErrInboxEmpty          = errors.New("inbox_dir must not be empty")
	ErrInboxRelative       = errors.New("inbox_dir must be absolute")
	ErrSuffixEmpty         = errors.New("proposal_suffix must not be empty")
	ErrQuarantineInvalid   = errors.New("quarantine_dir must be a plain directory name")
	ErrBackupSuffixEmpty   = errors.New("backup_suffix must not be empty")
	ErrWatchModeUnknown    = errors.New("unknown watch mode")
	ErrPollIntervalInvalid = errors.New("poll_interval must be positive")
	ErrTestCommandEmpty    = errors.New("test.command must not be empty")
	ErrLogSizeInvalid      = errors.New("log.max_size_mb must be positive")
)

var knownWatchModes = map[string]bool{
	WatchModeFSNotify: true,
	WatchModePoll:     true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.InboxDir == "" {
		return ErrInboxEmpty
	}
	if !filepath.IsAbs(c.InboxDir) {
		return ErrInboxRelative
	}
	if c.ProposalSuffix == "" {
		return ErrSuffixEmpty
	}
	if c.QuarantineDir == "" || strings.ContainsRune(c.QuarantineDir, filepath.Separator) || c.QuarantineDir == "." || c.QuarantineDir == ".." {
		return ErrQuarantineInvalid
	}
	if c.BackupSuffix == "" {
		return ErrBackupSuffixEmpty
	}
	if !knownWatchModes[c.Watch.Mode] {
		return ErrWatchModeUnknown
	}
	if c.Watch.Mode == WatchModePoll && c.Watch.PollInterval <= 0 {
		return ErrPollIntervalInvalid
	}
	if len(c.Test.Command) == 0 {
		return ErrTestCommandEmpty
	}
	if c.Log.MaxSizeMB <= 0 {
		return ErrLogSizeInvalid
	}
	return nil
}

// QuarantinePath is the absolute quarantine directory beneath the inbox.
func (c Config) QuarantinePath() string {
	return filepath.Join(c.InboxDir, c.QuarantineDir)
}
