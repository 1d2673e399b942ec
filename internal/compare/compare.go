// Package compare produces proposals: it diffs an original file against a
// revised copy and drops the result into the inbox.
package compare

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/mesh-intelligence/scribo/internal/atomicfile"
	"github.com/mesh-intelligence/scribo/internal/proposal"
)

// TimestampLayout prefixes proposal names so that name order is arrival order.
const TimestampLayout = "20060102-150405"

// ContextLines is the number of unchanged lines around each hunk.
const ContextLines = 3

const noNewlineMarker = "\\ No newline at end of file\n"

// ErrSameFile is returned when original and revised name the same file.
var ErrSameFile = errors.New("original and revised are the same file")

// Options tune Generate.
type Options struct {
	// Inbox receives the proposal.
	Inbox string
	// Suffix is the proposal extension; defaults to ".patch".
	Suffix string
	// Now stamps the proposal name; defaults to time.Now.
	Now func() time.Time
}

// Diff returns a unified diff turning original into revised, with absolute
// file names in the headers. It returns an empty string for identical input.
func Diff(originalPath string, original []byte, revisedPath string, revised []byte) (string, error) {
	if bytes.Equal(original, revised) {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(original),
		B:        splitLines(revised),
		FromFile: originalPath,
		ToFile:   revisedPath,
		Context:  ContextLines,
	})
}

// Generate diffs original against revised and atomically writes a proposal
// targeting original into the inbox. It returns the proposal path, or an
// empty string when the files are identical.
func Generate(original, revised string, opts Options) (string, error) {
	origAbs, err := filepath.Abs(original)
	if err != nil {
		return "", err
	}
	revAbs, err := filepath.Abs(revised)
	if err != nil {
		return "", err
	}
	if origAbs == revAbs {
		return "", ErrSameFile
	}

	a, err := os.ReadFile(origAbs)
	if err != nil {
		return "", fmt.Errorf("read original: %w", err)
	}
	b, err := os.ReadFile(revAbs)
	if err != nil {
		return "", fmt.Errorf("read revised: %w", err)
	}

	body, err := Diff(origAbs, a, revAbs, b)
	if err != nil {
		return "", fmt.Errorf("diff: %w", err)
	}
	if body == "" {
		return "", nil
	}

	suffix := opts.Suffix
	if suffix == "" {
		suffix = proposal.DefaultSuffix
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	if err := os.MkdirAll(opts.Inbox, 0o755); err != nil {
		return "", fmt.Errorf("create inbox: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(origAbs), filepath.Ext(origAbs))
	dest := freeName(opts.Inbox, now().Format(TimestampLayout)+"-"+stem, suffix)

	// Temp file is hidden, so the watcher only sees the final rename.
	if err := atomicfile.WriteFile(dest, proposal.Format(origAbs, []byte(body)), 0o644); err != nil {
		return "", fmt.Errorf("write proposal: %w", err)
	}
	return dest, nil
}

// freeName avoids clobbering a proposal generated in the same second.
func freeName(dir, base, suffix string) string {
	dest := filepath.Join(dir, base+suffix)
	for n := 1; ; n++ {
		if _, err := os.Lstat(dest); err != nil {
			return dest
		}
		dest = filepath.Join(dir, base+"-"+strconv.Itoa(n)+suffix)
	}
}

// splitLines keeps each line's newline. A final line without one is
// followed by the no-newline marker so the diff stays exact.
func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(b), "\n")
	if lines[len(lines)-1] == "" {
		return lines[:len(lines)-1]
	}
	lines[len(lines)-1] += "\n" + noNewlineMarker
	return lines
}
