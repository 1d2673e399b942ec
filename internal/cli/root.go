// Package cli implements the scribo command-line interface. Running scribo
// with no subcommand starts the daemon.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/scribo/internal/config"
	"github.com/mesh-intelligence/scribo/internal/daemon"
	"github.com/mesh-intelligence/scribo/internal/logging"
	"github.com/mesh-intelligence/scribo/internal/paths"
	"github.com/mesh-intelligence/scribo/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	inboxDir  string
}

// NewRootCmd creates the top-level "scribo" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "scribo",
		Short: "Apply patch proposals dropped into an inbox",
		Long: `scribo watches an inbox directory for patch proposals. Each proposal is
applied to its target file, formatted, and tested. A proposal that passes is
kept; one that fails is reverted and moved to the quarantine directory.

Run without a subcommand to start the daemon. It stops on SIGINT or SIGTERM
after finishing the proposals already queued.`,
		Args: cobra.NoArgs,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/scribo)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "journal directory (default: $XDG_DATA_HOME/scribo)")
	root.PersistentFlags().StringVar(&flags.inboxDir, "inbox", "", "inbox directory (default: ~/scribo_inbox)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(flags))
	root.AddCommand(newCompareCmd(flags))
	root.AddCommand(newHistoryCmd(flags))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(NewRootCmd(), os.Args[1:], os.Stderr))
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// codedError carries the exit code for an error returned by a command.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func userError(err error) error { return &codedError{code: exitUserError, err: err} }
func sysError(err error) error  { return &codedError{code: exitSysError, err: err} }

// exitCode maps err to a process exit code. Errors without an explicit
// code are usage errors from cobra.
func exitCode(err error) int {
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return exitUserError
}

// loadConfig resolves the config directory and loads the effective config.
// Errors from a bad config file or bad flag values are user errors.
func loadConfig(flags *rootFlags) (*types.Config, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	cfg, err := config.Load(configDir, config.Overrides{
		InboxDir: flags.inboxDir,
		DataDir:  flags.dataDir,
	})
	if err != nil {
		return nil, userError(err)
	}
	return cfg, nil
}

func runDaemon(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return userError(err)
	}
	defer closeLog()

	d, err := daemon.New(*cfg, logger)
	if err != nil {
		logger.Error("cannot start daemon", zap.Error(err))
		return sysError(err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("cannot close journal", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon failed", zap.Error(err))
		return sysError(err)
	}
	return nil
}
