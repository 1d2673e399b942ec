package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/scribo/internal/journal"
	"github.com/mesh-intelligence/scribo/pkg/types"
)

const defaultHistoryLimit = 20

type historyFlags struct {
	limit    int
	target   string
	jsonMode bool
}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var hf historyFlags
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent proposal outcomes",
		Long: `History lists how recent proposals left the pipeline, newest first. It
reads the journal without modifying it, so it is safe to run next to a live
daemon.

Example:
  scribo history
  scribo history --limit 5 --json
  scribo history --target src/app.py`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, flags, hf)
		},
	}
	cmd.Flags().IntVarP(&hf.limit, "limit", "n", defaultHistoryLimit, "maximum number of outcomes (0 for all)")
	cmd.Flags().StringVar(&hf.target, "target", "", "only outcomes for this target file")
	cmd.Flags().BoolVar(&hf.jsonMode, "json", false, "output in JSON format")
	return cmd
}

func runHistory(cmd *cobra.Command, flags *rootFlags, hf historyFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	j := journal.New()
	if err := j.Open(cfg.DataDir); err != nil {
		return sysError(fmt.Errorf("open journal: %w", err))
	}
	defer j.Detach()

	var outcomes []types.Outcome
	if hf.target != "" {
		target, err := filepath.Abs(hf.target)
		if err != nil {
			return userError(err)
		}
		outcomes, err = j.ByTarget(target, hf.limit)
		if err != nil {
			return sysError(fmt.Errorf("query journal: %w", err))
		}
	} else {
		outcomes, err = j.Recent(hf.limit)
		if err != nil {
			return sysError(fmt.Errorf("query journal: %w", err))
		}
	}

	out := cmd.OutOrStdout()
	if hf.jsonMode {
		if outcomes == nil {
			outcomes = []types.Outcome{}
		}
		output, err := json.MarshalIndent(outcomes, "", "  ")
		if err != nil {
			return sysError(fmt.Errorf("marshal outcomes: %w", err))
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	counts, err := j.Summary()
	if err != nil {
		return sysError(fmt.Errorf("query journal: %w", err))
	}
	printOutcomeTable(out, outcomes)
	printSummary(out, counts)
	return nil
}

// printOutcomeTable prints outcomes in a human-readable table format.
func printOutcomeTable(out io.Writer, outcomes []types.Outcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(out, "No outcomes recorded.")
		return
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "FINISHED\tSTATE\tFAULT\tPROPOSAL\tTARGET")
	fmt.Fprintln(w, "--------\t-----\t-----\t--------\t------")
	for _, o := range outcomes {
		fault := string(o.Fault)
		if fault == "" {
			fault = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			o.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			o.State,
			fault,
			o.Proposal,
			o.Target,
		)
	}
	w.Flush()

	// Trim tabwriter padding from each line.
	for _, line := range strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n") {
		fmt.Fprintln(out, strings.TrimRight(line, " "))
	}
	fmt.Fprintf(out, "Total: %d outcome(s)\n", len(outcomes))
}

func printSummary(out io.Writer, counts map[types.State]int) {
	if len(counts) == 0 {
		return
	}
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, string(s))
	}
	sort.Strings(states)

	parts := make([]string, 0, len(states))
	for _, s := range states {
		parts = append(parts, fmt.Sprintf("%s=%d", s, counts[types.State(s)]))
	}
	fmt.Fprintf(out, "All time: %s\n", strings.Join(parts, " "))
}
