// Package backup snapshots a single target file before it is mutated and
// either discards the snapshot (commit) or puts it back (restore).
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mesh-intelligence/scribo/internal/atomicfile"
	"github.com/mesh-intelligence/scribo/pkg/types"
)

// DefaultSuffix is appended to the target path to name its backup.
const DefaultSuffix = ".scribo_bak"

// Manager creates backups beside their targets.
type Manager struct {
	suffix string
}

// NewManager returns a Manager that names backups <target><suffix>.
func NewManager(suffix string) *Manager {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return &Manager{suffix: suffix}
}

// PathFor returns where the backup of target lives.
func (m *Manager) PathFor(target string) string {
	return target + m.suffix
}

// Backup is a live snapshot of one target. It is owned by the item being
// processed and must end with exactly one call to Commit or Restore.
type Backup struct {
	Target string
	Path   string
	mode   os.FileMode
	done   bool
}

// Snapshot copies target's current bytes aside. It refuses to run when a
// backup artifact already exists, since that artifact may be the only copy
// of the original bytes from an interrupted earlier item. On failure no
// partial backup is left on disk.
func (m *Manager) Snapshot(target string) (*Backup, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("%w: stat target: %w", types.ErrBackupFailed, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", types.ErrBackupFailed, target)
	}

	path := m.PathFor(target)
	src, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("%w: open target: %w", types.ErrBackupFailed, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %w: %s", types.ErrBackupFailed, types.ErrBackupExists, path)
		}
		return nil, fmt.Errorf("%w: create backup: %w", types.ErrBackupFailed, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: copy: %w", types.ErrBackupFailed, err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: sync: %w", types.ErrBackupFailed, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("%w: close: %w", types.ErrBackupFailed, err)
	}

	return &Backup{Target: target, Path: path, mode: info.Mode().Perm()}, nil
}

// Commit discards the backup; the mutation of the target becomes permanent.
func (b *Backup) Commit() error {
	if b.done {
		return nil
	}
	if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove backup: %w", err)
	}
	b.done = true
	return nil
}

// Restore overwrites the target with the backed-up bytes and then deletes
// the backup. The target is replaced atomically, so it holds either the
// mutated or the original bytes, never a mix. If the target cannot be
// restored, the backup is left in place and ErrRestoreFailed is returned.
func (b *Backup) Restore() error {
	if b.done {
		return nil
	}
	src, err := os.Open(b.Path)
	if err != nil {
		return fmt.Errorf("%w: open backup: %w", types.ErrRestoreFailed, err)
	}
	err = atomicfile.Write(b.Target, b.mode, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	})
	src.Close()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrRestoreFailed, err)
	}

	// The target is whole again; a stale backup only costs disk space.
	if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove backup after restore: %w", err)
	}
	b.done = true
	return nil
}

// Mode is the permission bits of the target at snapshot time.
func (b *Backup) Mode() os.FileMode {
	return b.mode
}
