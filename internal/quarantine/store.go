// Package quarantine is the terminal home of rejected proposals. Entries are
// moved in, never copied, and never overwritten.
package quarantine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultDirName is the quarantine subdirectory beneath the inbox.
const DefaultDirName = "quarantine"

// maxSuffix bounds the search for a free name on collisions.
const maxSuffix = 10000

// ErrNoFreeName is returned when every disambiguated name is taken.
var ErrNoFreeName = errors.New("no free quarantine name")

// Store moves proposals into a fixed directory.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory is created on demand.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir is the quarantine directory.
func (s *Store) Dir() string {
	return s.dir
}

// Accept moves the file at path into quarantine and returns where it landed.
// The entry keeps its original name; if that name is taken, a numeric
// suffix is inserted before the extension (name.1.patch, name.2.patch, ...).
func (s *Store) Accept(path string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create quarantine dir: %w", err)
	}

	dest, err := s.freeName(filepath.Base(path))
	if err != nil {
		return "", err
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move to quarantine: %w", err)
	}
	return dest, nil
}

func (s *Store) freeName(name string) (string, error) {
	dest := filepath.Join(s.dir, name)
	if !exists(dest) {
		return dest, nil
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; n < maxSuffix; n++ {
		dest = filepath.Join(s.dir, stem+"."+strconv.Itoa(n)+ext)
		if !exists(dest) {
			return dest, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoFreeName, name)
}

// List returns the names of quarantined entries in lexical order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
