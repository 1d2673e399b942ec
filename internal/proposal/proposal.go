// Package proposal reads change proposals: files whose first line declares
// the target (`--- target: <absolute path>`) and whose remainder is a
// unified diff body.
package proposal

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/scribo/pkg/types"
)

// HeaderPrefix starts the target declaration line.
const HeaderPrefix = "--- target: "

// DefaultSuffix is the file name suffix of proposals in the inbox.
const DefaultSuffix = ".patch"

// Proposal is a parsed change proposal.
type Proposal struct {
	Path   string // absolute path of the proposal file
	Name   string // base name, the key used in quarantine
	Target string // declared absolute target path
	Body   []byte // unified diff body following the header line
}

// ParseHeader validates a target declaration line and returns the target.
// Trailing whitespace (including a CR) is ignored; the path must be absolute.
func ParseHeader(line string) (string, error) {
	line = strings.TrimRight(line, " \t\r\n")
	if !strings.HasPrefix(line, HeaderPrefix) {
		return "", fmt.Errorf("%w: first line does not start with %q", types.ErrMalformedProposal, HeaderPrefix)
	}
	target := strings.TrimPrefix(line, HeaderPrefix)
	if target == "" {
		return "", fmt.Errorf("%w: empty target", types.ErrMalformedProposal)
	}
	if !filepath.IsAbs(target) {
		return "", fmt.Errorf("%w: target %q is not absolute", types.ErrMalformedProposal, target)
	}
	return filepath.Clean(target), nil
}

// Parse splits raw proposal bytes into header and body.
func Parse(path string, data []byte) (*Proposal, error) {
	header, body, _ := bytes.Cut(data, []byte("\n"))
	target, err := ParseHeader(string(header))
	if err != nil {
		return nil, err
	}
	return &Proposal{
		Path:   path,
		Name:   filepath.Base(path),
		Target: target,
		Body:   body,
	}, nil
}

// Read loads and parses the proposal at path. A missing file yields
// ErrProposalVanished; an unreadable or ill-formed one ErrMalformedProposal.
func Read(path string) (*Proposal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrProposalVanished, path)
		}
		return nil, fmt.Errorf("%w: read: %w", types.ErrMalformedProposal, err)
	}
	return Parse(path, data)
}

// Format renders a proposal file from a target and diff body.
func Format(target string, body []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(HeaderPrefix) + len(target) + 1 + len(body))
	buf.WriteString(HeaderPrefix)
	buf.WriteString(target)
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes()
}

// IsProposal reports whether name looks like a proposal file. Hidden files
// are excluded so producers can stage temp files in the inbox itself.
func IsProposal(name, suffix string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.HasSuffix(base, suffix) && len(base) > len(suffix)
}
