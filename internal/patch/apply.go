// Package patch applies unified diff bodies to a single declared target.
//
// Parsing is done by github.com/sourcegraph/go-diff; this package resolves
// the file names in the diff against the target and applies hunks strictly:
// every hunk must match the current content at its declared offset, or
// nothing is applied at all.
package patch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/mesh-intelligence/scribo/internal/atomicfile"
	"github.com/mesh-intelligence/scribo/pkg/types"
)

// devNull is the placeholder name for a missing side of a diff.
const devNull = "/dev/null"

// Target is the file a diff body is applied to.
type Target struct {
	// Path is the declared absolute path of the file.
	Path string
	// Root anchors project-relative names such as a/src/x.py.
	Root string
	// Content is the file's current bytes.
	Content []byte
}

// Error describes why a diff body could not be applied. It matches
// types.ErrApplyFailed with errors.Is.
type Error struct {
	File   string // file name as written in the diff, if known
	Hunk   int    // 1-based hunk index, 0 when not hunk specific
	Line   int    // 1-based line in the target where matching failed
	Reason string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(types.ErrApplyFailed.Error())
	if e.File != "" {
		fmt.Fprintf(&b, ": %s", e.File)
	}
	if e.Hunk > 0 {
		fmt.Fprintf(&b, ": hunk %d", e.Hunk)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func (e *Error) Unwrap() error { return types.ErrApplyFailed }

// Apply applies every file section of body to t and returns the new
// content. All sections must resolve to t.Path. On any failure the returned
// error wraps types.ErrApplyFailed and t.Content is left as it was.
func Apply(body []byte, t Target) ([]byte, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &Error{Reason: "empty diff body"}
	}
	fileDiffs, err := diff.ParseMultiFileDiff(body)
	if err != nil {
		return nil, &Error{Reason: fmt.Sprintf("parse diff: %v", err)}
	}
	if len(fileDiffs) == 0 {
		return nil, &Error{Reason: "no file sections in diff"}
	}

	content := t.Content
	for _, fd := range fileDiffs {
		name := displayName(fd)
		if !t.resolves(fd.OrigName) && !t.resolves(fd.NewName) {
			return nil, &Error{File: name, Reason: fmt.Sprintf("does not resolve to declared target %s", t.Path)}
		}
		if len(fd.Hunks) == 0 {
			return nil, &Error{File: name, Reason: "no hunks"}
		}
		next, err := applyHunks(content, fd.Hunks)
		if err != nil {
			err.File = name
			return nil, err
		}
		content = next
	}
	return content, nil
}

// ApplyToFile reads path, applies body, and atomically writes the result
// back with the file's existing permissions. The file is untouched unless
// every hunk applies.
func ApplyToFile(body []byte, path, root string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &Error{File: path, Reason: fmt.Sprintf("stat target: %v", err)}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return &Error{File: path, Reason: fmt.Sprintf("read target: %v", err)}
	}
	out, err := Apply(body, Target{Path: path, Root: root, Content: content})
	if err != nil {
		return err
	}
	if err := atomicfile.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return &Error{File: path, Reason: fmt.Sprintf("write target: %v", err)}
	}
	return nil
}

// resolves reports whether a diff file name refers to the target. Names may
// be absolute, plain (relative to the target's directory or the project
// root), or carry the conventional a/ and b/ prefixes.
func (t Target) resolves(name string) bool {
	if name == "" || name == devNull {
		return false
	}
	want := filepath.Clean(t.Path)
	for _, c := range t.candidates(name) {
		if filepath.Clean(c) == want {
			return true
		}
	}
	return false
}

func (t Target) candidates(name string) []string {
	if filepath.IsAbs(name) {
		return []string{name}
	}
	dir := filepath.Dir(t.Path)
	out := []string{filepath.Join(dir, name)}
	if t.Root != "" {
		out = append(out, filepath.Join(t.Root, name))
	}
	if stripped, ok := stripSidePrefix(name); ok {
		if t.Root != "" {
			out = append(out, filepath.Join(t.Root, stripped))
		}
		out = append(out, filepath.Join(dir, stripped))
	}
	return out
}

func stripSidePrefix(name string) (string, bool) {
	for _, p := range []string{"a/", "b/"} {
		if rest, ok := strings.CutPrefix(name, p); ok && rest != "" {
			return rest, true
		}
	}
	return "", false
}

func displayName(fd *diff.FileDiff) string {
	if fd.OrigName != "" && fd.OrigName != devNull {
		return fd.OrigName
	}
	return fd.NewName
}

// applyHunks splices each hunk into content. Hunks must be in ascending,
// non-overlapping order and match exactly at their declared offsets.
func applyHunks(content []byte, hunks []*diff.Hunk) ([]byte, *Error) {
	lines := splitLines(content)
	out := make([]string, 0, len(lines))
	cursor := 0

	for i, h := range hunks {
		idx := i + 1
		orig, repl, err := sides(h)
		if err != nil {
			return nil, &Error{Hunk: idx, Reason: err.Error()}
		}

		start := int(h.OrigStartLine) - 1
		if h.OrigLines == 0 {
			// Pure insertion: the header names the line after which to insert.
			start = int(h.OrigStartLine)
		}
		if start < cursor {
			return nil, &Error{Hunk: idx, Line: start + 1, Reason: "hunk overlaps or precedes the previous hunk"}
		}
		if start+len(orig) > len(lines) {
			return nil, &Error{Hunk: idx, Line: start + 1, Reason: fmt.Sprintf("hunk extends past end of file (%d lines)", len(lines))}
		}
		for j, want := range orig {
			if lines[start+j] != want {
				return nil, &Error{Hunk: idx, Line: start + j + 1, Reason: fmt.Sprintf("content mismatch: want %q, have %q", want, lines[start+j])}
			}
		}

		out = append(out, lines[cursor:start]...)
		out = append(out, repl...)
		cursor = start + len(orig)
	}
	out = append(out, lines[cursor:]...)

	var buf bytes.Buffer
	for _, l := range out {
		buf.WriteString(l)
	}
	return buf.Bytes(), nil
}

// sides splits a hunk body into the original lines it expects and the lines
// that replace them. Each line keeps its trailing newline when it has one.
func sides(h *diff.Hunk) (orig, repl []string, err error) {
	body := h.Body
	offset := 0
	for len(body) > 0 {
		if len(orig) == int(h.OrigLines) && len(repl) == int(h.NewLines) {
			// The parser keeps reading until the next header, so blank
			// lines trailing the last hunk end up in its body.
			if len(bytes.Trim(body, "\n")) == 0 {
				break
			}
		}
		var ln []byte
		if i := bytes.IndexByte(body, '\n'); i >= 0 {
			ln, body = body[:i+1], body[i+1:]
		} else {
			ln, body = body, nil
		}
		offset += len(ln)

		switch ln[0] {
		case ' ':
			orig = append(orig, string(ln[1:]))
			repl = append(repl, string(ln[1:]))
		case '\n':
			// Some producers strip the space from blank context lines.
			orig = append(orig, "\n")
			repl = append(repl, "\n")
		case '-':
			text := string(ln[1:])
			if h.OrigNoNewlineAt > 0 && int32(offset) == h.OrigNoNewlineAt {
				text = strings.TrimSuffix(text, "\n")
			}
			orig = append(orig, text)
		case '+':
			repl = append(repl, string(ln[1:]))
		default:
			return nil, nil, fmt.Errorf("bad hunk line %q", ln)
		}
	}

	if len(orig) != int(h.OrigLines) {
		return nil, nil, fmt.Errorf("hunk header expects %d original lines, body has %d", h.OrigLines, len(orig))
	}
	if len(repl) != int(h.NewLines) {
		return nil, nil, fmt.Errorf("hunk header expects %d new lines, body has %d", h.NewLines, len(repl))
	}
	return orig, repl, nil
}

// splitLines splits content after each newline. The last element lacks a
// newline when the content does not end with one.
func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	parts := strings.SplitAfter(string(content), "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
