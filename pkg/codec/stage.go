// pkg/codec/stage.go
package codec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/avantoine/go-unarc/internal/fsutil"
)

// stageBufSize is the copy buffer size for decoded entry data
const stageBufSize = 256 * 1024

// progressMeter accumulates decoded bytes and drives the progress hook.
// Hooks are polled at decode start and after every buffered write, so a
// stop request never waits on more than one buffer.
type progressMeter struct {
	cbs     Callbacks
	decoded uint64
}

// tick polls the hook without adding bytes.
func (m *progressMeter) tick() error {
	if m.cbs.Progress != nil && !m.cbs.Progress(m.decoded) {
		return ErrStopped
	}
	return nil
}

// add accounts n decoded bytes and polls the hook.
func (m *progressMeter) add(n int) error {
	m.decoded += uint64(n)
	return m.tick()
}

// stagePath resolves an entry path inside the staging dir, refusing
// entries that would escape it.
func stagePath(dir, entryPath string) (string, error) {
	rel, err := fsutil.SanitizeRelPath(entryPath)
	if err != nil {
		return "", fmt.Errorf("unsafe entry path: %w", err)
	}
	return filepath.Join(dir, rel), nil
}

// stageDir creates a staged directory entry.
func stageDir(dir string, e EntryInfo) error {
	dst, err := stagePath(dir, e.Path)
	if err != nil {
		return err
	}
	return os.MkdirAll(dst, 0o755)
}

// stageFile writes one staged file entry from r, reporting progress as it
// goes. mode 0 falls back to a plain readable file.
func stageFile(dir string, e EntryInfo, r io.Reader, mode os.FileMode, buf []byte, m *progressMeter) (err error) {
	dst, err := stagePath(dir, e.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write %s: %w", dst, werr)
			}
			if perr := m.add(n); perr != nil {
				return perr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read %s: %w", e.Path, rerr)
		}
	}
}
