// Package validate runs the external test and formatting commands that
// judge a patched project.
package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/scribo/pkg/types"
)

// Defaults for the exec collaborators.
const (
	DefaultTestTimeout   = 10 * time.Minute
	DefaultFormatTimeout = time.Minute
	// pytest exits 5 when it collects no tests.
	DefaultNoTestsExitCode = 5
	// maxLoggedOutput bounds how much command output reaches the log.
	maxLoggedOutput = 4096
	// waitDelay bounds the wait for output pipes held open by orphaned
	// grandchildren after a kill.
	waitDelay = time.Second
)

// Placeholder in formatter command lines replaced by the target path.
const FilePlaceholder = "{file}"

// DefaultTestCommand runs pytest quietly.
var DefaultTestCommand = []string{"pytest", "-q"}

// DefaultFormatCommands format Python sources in place.
var DefaultFormatCommands = []string{
	"black -q " + FilePlaceholder,
	"ruff check --fix -q " + FilePlaceholder,
}

// ExecRunner is a types.TestRunner that runs a command in the project root
// and classifies its exit status.
type ExecRunner struct {
	Command          []string
	NoTestsExitCodes []int
	Timeout          time.Duration
	Logger           *zap.Logger
}

var _ types.TestRunner = (*ExecRunner)(nil)

// Run implements types.TestRunner. Exit 0 is PASS and an exit code listed in
// NoTestsExitCodes is NO_TESTS. A missing executable means there is nothing
// to run, which is also NO_TESTS. Everything else is FAIL.
func (r *ExecRunner) Run(ctx context.Context, projectRoot string) types.TestResult {
	logger := r.logger().With(zap.String("root", projectRoot))
	if len(r.Command) == 0 {
		logger.Warn("no test command configured")
		return types.TestNoTests
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Dir = projectRoot
	cmd.WaitDelay = waitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		logger.Info("tests passed", zap.Duration("elapsed", elapsed))
		return types.TestPass
	}
	if errors.Is(err, exec.ErrNotFound) {
		logger.Warn("test command not found, treating as no tests",
			zap.String("command", r.Command[0]), zap.Error(err))
		return types.TestNoTests
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.Warn("tests timed out", zap.Duration("timeout", timeout), zap.String("output", tail(out.Bytes())))
		return types.TestFail
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if slices.Contains(r.NoTestsExitCodes, code) {
			logger.Info("no tests collected", zap.Int("exit_code", code), zap.Duration("elapsed", elapsed))
			return types.TestNoTests
		}
		logger.Warn("tests failed", zap.Int("exit_code", code), zap.String("output", tail(out.Bytes())))
		return types.TestFail
	}

	logger.Warn("test command could not run", zap.Error(err))
	return types.TestFail
}

func (r *ExecRunner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// ExecFormatter is a types.Formatter that runs each command line in order
// against the target file. It stops at the first failing command.
type ExecFormatter struct {
	Commands []string
	Timeout  time.Duration
	Logger   *zap.Logger
}

var _ types.Formatter = (*ExecFormatter)(nil)

// Format implements types.Formatter.
func (f *ExecFormatter) Format(ctx context.Context, targetPath string) error {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFormatTimeout
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, line := range f.Commands {
		argv := Expand(line, targetPath)
		if len(argv) == 0 {
			continue
		}
		if err := runFormatter(ctx, timeout, argv, filepath.Dir(targetPath)); err != nil {
			return fmt.Errorf("format %s with %s: %w", targetPath, argv[0], err)
		}
		logger.Debug("formatter ran", zap.String("command", argv[0]), zap.String("target", targetPath))
	}
	return nil
}

func runFormatter(ctx context.Context, timeout time.Duration, argv []string, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := tail(out.Bytes()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// Expand splits a command line on whitespace and substitutes the target
// path for FilePlaceholder. Without a placeholder the path is appended.
func Expand(line, targetPath string) []string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	replaced := false
	for i, f := range fields {
		if strings.Contains(f, FilePlaceholder) {
			fields[i] = strings.ReplaceAll(f, FilePlaceholder, targetPath)
			replaced = true
		}
	}
	if !replaced {
		fields = append(fields, targetPath)
	}
	return fields
}

func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxLoggedOutput {
		b = b[len(b)-maxLoggedOutput:]
	}
	return string(b)
}
