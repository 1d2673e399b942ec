package types

import (
	"errors"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		InboxDir:       "/var/scribo/inbox",
		ProposalSuffix: ".patch",
		QuarantineDir:  "quarantine",
		BackupSuffix:   ".scribo_bak",
		Watch:          WatchConfig{Mode: WatchModeFSNotify},
		Test:           TestConfig{Command: []string{"pytest"}},
		Log:            LogConfig{MaxSizeMB: 10},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty inbox returns ErrInboxEmpty",
			mutate:  func(c *Config) { c.InboxDir = "" },
			wantErr: ErrInboxEmpty,
		},
		{
			name:    "relative inbox returns ErrInboxRelative",
			mutate:  func(c *Config) { c.InboxDir = "inbox" },
			wantErr: ErrInboxRelative,
		},
		{
			name:    "empty suffix returns ErrSuffixEmpty",
			mutate:  func(c *Config) { c.ProposalSuffix = "" },
			wantErr: ErrSuffixEmpty,
		},
		{
			name:    "nested quarantine returns ErrQuarantineInvalid",
			mutate:  func(c *Config) { c.QuarantineDir = "a/b" },
			wantErr: ErrQuarantineInvalid,
		},
		{
			name:    "dot quarantine returns ErrQuarantineInvalid",
			mutate:  func(c *Config) { c.QuarantineDir = "." },
			wantErr: ErrQuarantineInvalid,
		},
		{
			name:    "empty backup suffix returns ErrBackupSuffixEmpty",
			mutate:  func(c *Config) { c.BackupSuffix = "" },
			wantErr: ErrBackupSuffixEmpty,
		},
		{
			name:    "unknown watch mode returns ErrWatchModeUnknown",
			mutate:  func(c *Config) { c.Watch.Mode = "inotify2" },
			wantErr: ErrWatchModeUnknown,
		},
		{
			name:    "poll mode without interval returns ErrPollIntervalInvalid",
			mutate:  func(c *Config) { c.Watch.Mode = WatchModePoll },
			wantErr: ErrPollIntervalInvalid,
		},
		{
			name: "poll mode with interval is valid",
			mutate: func(c *Config) {
				c.Watch.Mode = WatchModePoll
				c.Watch.PollInterval = time.Second
			},
		},
		{
			name:    "empty test command returns ErrTestCommandEmpty",
			mutate:  func(c *Config) { c.Test.Command = nil },
			wantErr: ErrTestCommandEmpty,
		},
		{
			name:    "zero log size returns ErrLogSizeInvalid",
			mutate:  func(c *Config) { c.Log.MaxSizeMB = 0 },
			wantErr: ErrLogSizeInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigQuarantinePath(t *testing.T) {
	cfg := validConfig()
	if got, want := cfg.QuarantinePath(), "/var/scribo/inbox/quarantine"; got != want {
		t.Fatalf("QuarantinePath() = %q, want %q", got, want)
	}
}
