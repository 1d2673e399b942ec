package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/scribo/internal/journal"
	"github.com/mesh-intelligence/scribo/internal/paths"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration, inbox, and journal directories",
		Long: `Init writes a default config.yaml if none exists, then creates the inbox,
its quarantine directory, and the journal in the data directory. Running init
again is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, flags)
		},
	}
}

func runInit(cmd *cobra.Command, flags *rootFlags) error {
	// loadConfig writes config.yaml when it is missing.
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return sysError(err)
	}

	for _, dir := range []string{cfg.InboxDir, cfg.QuarantinePath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return sysError(fmt.Errorf("create directory: %w", err))
		}
	}

	if cfg.Journal.Enabled {
		j := journal.New()
		if err := j.Attach(cfg.DataDir); err != nil {
			return sysError(fmt.Errorf("initialize journal: %w", err))
		}
		if err := j.Detach(); err != nil {
			return sysError(fmt.Errorf("finalize journal: %w", err))
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config:     %s\n", configDir)
	fmt.Fprintf(out, "inbox:      %s\n", cfg.InboxDir)
	fmt.Fprintf(out, "quarantine: %s\n", cfg.QuarantinePath())
	fmt.Fprintf(out, "data:       %s\n", cfg.DataDir)
	fmt.Fprintln(out, "scribo initialized successfully")
	return nil
}
