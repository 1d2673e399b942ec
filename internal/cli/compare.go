package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/scribo/internal/compare"
)

func newCompareCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <original> <revised>",
		Short: "Write a proposal that turns original into revised",
		Long: `Compare diffs a revised copy against the original file and writes the
result into the inbox as a proposal targeting the original. The proposal is
written to a hidden temp file and renamed, so a running daemon only sees it
once it is complete.

Identical files produce no proposal.

Example:
  scribo compare src/app.py /tmp/app.py`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, flags, args[0], args[1])
		},
	}
}

func runCompare(cmd *cobra.Command, flags *rootFlags, original, revised string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	path, err := compare.Generate(original, revised, compare.Options{
		Inbox:  cfg.InboxDir,
		Suffix: cfg.ProposalSuffix,
	})
	if err != nil {
		if errors.Is(err, compare.ErrSameFile) {
			return userError(err)
		}
		return userError(fmt.Errorf("compare: %w", err))
	}
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No differences; no proposal written.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
