// Package project locates the project boundary that encloses a file.
package project

import (
	"os"
	"path/filepath"
)

// DefaultMarkers are the entries whose presence marks a project root: a
// version-control directory or a project manifest.
var DefaultMarkers = []string{".git", "pyproject.toml", "go.mod"}

// FindRoot walks from start towards the filesystem root and returns the first
// directory that contains one of markers. When none is found, the cleaned
// start directory is returned. Symlinks are not evaluated, so the result
// only depends on the path and the markers present on disk.
func FindRoot(start string, markers []string) string {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	start = filepath.Clean(start)
	if abs, err := filepath.Abs(start); err == nil {
		start = abs
	}

	dir := start
	for {
		if hasMarker(dir, markers) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// RootOf resolves the project root for a file path.
func RootOf(file string, markers []string) string {
	return FindRoot(filepath.Dir(file), markers)
}

func hasMarker(dir string, markers []string) bool {
	for _, m := range markers {
		if _, err := os.Lstat(filepath.Join(dir, m)); err == nil {
			return true
		}
	}
	return false
}
