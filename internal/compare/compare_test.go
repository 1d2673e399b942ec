package compare

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/scribo/internal/patch"
	"github.com/mesh-intelligence/scribo/internal/proposal"
)

var fixed = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGenerate_ProposalAppliesBack(t *testing.T) {
	tests := []struct {
		name     string
		original string
		revised  string
	}{
		{"single line change", "alpha\nbeta\n", "ALPHA\nbeta\n"},
		{"insert in middle", "a\nb\nc\nd\ne\nf\ng\nh\n", "a\nb\nc\nd\nnew\ne\nf\ng\nh\n"},
		{"two separated hunks", strings.Repeat("x\n", 3) + "one\n" + strings.Repeat("y\n", 10) + "two\n",
			strings.Repeat("x\n", 3) + "ONE\n" + strings.Repeat("y\n", 10) + "TWO\n"},
		{"delete everything", "alpha\nbeta\n", ""},
		{"fill empty file", "", "alpha\n"},
		{"no newline at end kept", "alpha\nbeta", "alpha\nBETA"},
		{"newline added at end", "alpha\nbeta", "alpha\nbeta\n"},
		{"newline removed at end", "alpha\nbeta\n", "alpha\nbeta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work := t.TempDir()
			inbox := filepath.Join(t.TempDir(), "inbox")
			orig := filepath.Join(work, "module.py")
			rev := filepath.Join(work, "module.revised.py")
			write(t, orig, tt.original)
			write(t, rev, tt.revised)

			path, err := Generate(orig, rev, Options{Inbox: inbox, Now: fixed})
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(inbox, "20250304-050607-module.patch"), path)

			p, err := proposal.Read(path)
			require.NoError(t, err)
			assert.Equal(t, orig, p.Target)

			got, err := patch.Apply(p.Body, patch.Target{Path: orig, Root: work, Content: []byte(tt.original)})
			require.NoError(t, err, "body:\n%s", p.Body)
			assert.Equal(t, tt.revised, string(got))
		})
	}
}

func TestGenerate_IdenticalFiles(t *testing.T) {
	work := t.TempDir()
	inbox := filepath.Join(work, "inbox")
	write(t, filepath.Join(work, "a.txt"), "same\n")
	write(t, filepath.Join(work, "b.txt"), "same\n")

	path, err := Generate(filepath.Join(work, "a.txt"), filepath.Join(work, "b.txt"), Options{Inbox: inbox})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.NoDirExists(t, inbox)
}

func TestGenerate_SameSecondDoesNotClobber(t *testing.T) {
	work := t.TempDir()
	inbox := t.TempDir()
	orig := filepath.Join(work, "a.txt")
	write(t, orig, "alpha\n")
	write(t, filepath.Join(work, "b.txt"), "beta\n")
	write(t, filepath.Join(work, "c.txt"), "gamma\n")

	first, err := Generate(orig, filepath.Join(work, "b.txt"), Options{Inbox: inbox, Now: fixed})
	require.NoError(t, err)
	second, err := Generate(orig, filepath.Join(work, "c.txt"), Options{Inbox: inbox, Now: fixed})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(inbox, "20250304-050607-a.patch"), first)
	assert.Equal(t, filepath.Join(inbox, "20250304-050607-a-1.patch"), second)

	entries, err := os.ReadDir(inbox)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestGenerate_Errors(t *testing.T) {
	work := t.TempDir()
	orig := filepath.Join(work, "a.txt")
	write(t, orig, "alpha\n")

	_, err := Generate(orig, orig, Options{Inbox: t.TempDir()})
	assert.ErrorIs(t, err, ErrSameFile)

	_, err = Generate(orig, filepath.Join(work, "missing.txt"), Options{Inbox: t.TempDir()})
	assert.Error(t, err)

	_, err = Generate(filepath.Join(work, "missing.txt"), orig, Options{Inbox: t.TempDir()})
	assert.Error(t, err)
}

func TestDiff_Headers(t *testing.T) {
	body, err := Diff("/p/a.txt", []byte("alpha\nbeta\n"), "/tmp/a.txt", []byte("ALPHA\nbeta\n"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body, "--- /p/a.txt\n+++ /tmp/a.txt\n@@ -1,2 +1,2 @@\n"), body)
}
