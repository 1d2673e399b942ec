package quarantine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dropProposal(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAccept_MovesKeepingName(t *testing.T) {
	inbox := t.TempDir()
	s := New(filepath.Join(inbox, DefaultDirName))
	src := dropProposal(t, inbox, "20250101-120000-a.patch", "body")

	dest, err := s.Accept(src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(inbox, DefaultDirName, "20250101-120000-a.patch"), dest)
	assert.NoFileExists(t, src, "accept must move, not copy")
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "body", string(got))
}

func TestAccept_CollisionsGetSuffix(t *testing.T) {
	inbox := t.TempDir()
	s := New(filepath.Join(inbox, DefaultDirName))

	var dests []string
	for i, body := range []string{"first", "second", "third"} {
		src := dropProposal(t, inbox, "x.patch", body)
		dest, err := s.Accept(src)
		require.NoError(t, err, "accept %d", i)
		dests = append(dests, dest)
	}

	assert.Equal(t, []string{
		filepath.Join(s.Dir(), "x.patch"),
		filepath.Join(s.Dir(), "x.1.patch"),
		filepath.Join(s.Dir(), "x.2.patch"),
	}, dests)

	first, err := os.ReadFile(dests[0])
	require.NoError(t, err)
	assert.Equal(t, "first", string(first), "earlier entry must not be overwritten")

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"x.1.patch", "x.2.patch", "x.patch"}, names)
}

func TestAccept_MissingSource(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), DefaultDirName))
	_, err := s.Accept(filepath.Join(t.TempDir(), "gone.patch"))
	assert.Error(t, err)
}

func TestList_MissingDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-created"))
	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}
