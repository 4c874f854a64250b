// pkg/codec/rar.go
package codec

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nwaples/rardecode/v2"
)

// Rar reads RAR v4 and v5 archives, including multi-volume sets.
type Rar struct{}

func (Rar) Name() string { return "rar" }

func (Rar) Match(filename string, header []byte) bool {
	return magicRar.match(header)
}

func (Rar) Open(path string, password func() string) (Handle, error) {
	h := &rarHandle{path: path, password: password}
	if err := h.scan(); err != nil {
		return nil, fmt.Errorf("open rar %s: %w", path, err)
	}
	return h, nil
}

type rarHandle struct {
	path     string
	password func() string
	pw       string
	pwTried  bool
	entries  []EntryInfo
	modes    []os.FileMode
	volumes  []string
}

// isPasswordError reports whether err means credentials are required or
// wrong.
func isPasswordError(err error) bool {
	return errors.Is(err, rardecode.ErrArchiveEncrypted) ||
		errors.Is(err, rardecode.ErrArchivedFileEncrypted) ||
		errors.Is(err, rardecode.ErrBadPassword)
}

func (h *rarHandle) options() []rardecode.Option {
	if h.pw == "" {
		return nil
	}
	return []rardecode.Option{rardecode.Password(h.pw)}
}

// fetchPassword pulls credentials once and reports whether a retry is
// worth attempting.
func (h *rarHandle) fetchPassword() bool {
	if h.pwTried || h.password == nil {
		return false
	}
	h.pwTried = true
	h.pw = h.password()
	return h.pw != ""
}

func (h *rarHandle) scan() error {
	err := h.walk()
	if err != nil && isPasswordError(err) && h.fetchPassword() {
		h.entries = nil
		h.modes = nil
		h.volumes = nil
		err = h.walk()
	}
	return err
}

// walk reads every header in the archive, building the catalog without
// decompressing file data. Symlinks and other special entries are dropped
// from both the catalog and later decodes, so positions stay aligned.
func (h *rarHandle) walk() error {
	rc, err := rardecode.OpenReader(h.path, h.options()...)
	if err != nil {
		return err
	}
	for {
		hdr, err := rc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			rc.Close()
			return err
		}
		if !catalogable(hdr) {
			continue
		}
		size := hdr.UnPackedSize
		if size < 0 {
			size = 0
		}
		h.entries = append(h.entries, EntryInfo{
			Path:  hdr.Name,
			Size:  uint64(size),
			IsDir: hdr.IsDir,
		})
		h.modes = append(h.modes, hdr.Mode())
	}
	h.volumes = rc.Volumes()
	return rc.Close()
}

func catalogable(hdr *rardecode.FileHeader) bool {
	return hdr.IsDir || hdr.Mode().IsRegular()
}

func (h *rarHandle) Entries() []EntryInfo { return h.entries }
func (h *rarHandle) Volumes() []string    { return h.volumes }
func (h *rarHandle) Close() error         { return nil }

func (h *rarHandle) Decode(dir string, indices []int, cbs Callbacks) error {
	err := h.decode(dir, indices, cbs)
	if err == nil || errors.Is(err, ErrStopped) {
		return err
	}
	// files can be encrypted individually even when the headers are not
	if !isPasswordError(err) || !h.fetchPassword() {
		return err
	}
	return h.decode(dir, indices, cbs)
}

func (h *rarHandle) decode(dir string, indices []int, cbs Callbacks) error {
	m := &progressMeter{cbs: cbs}
	if err := m.tick(); err != nil {
		return err
	}
	want := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(h.entries) {
			return fmt.Errorf("rar: entry index %d out of range", i)
		}
		want[i] = true
	}

	rc, err := rardecode.OpenReader(h.path, h.options()...)
	if err != nil {
		return err
	}
	defer rc.Close()

	buf := make([]byte, stageBufSize)
	idx := 0
	for {
		hdr, err := rc.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read rar %s: %w", h.path, err)
		}
		if !catalogable(hdr) {
			continue
		}
		cur := idx
		idx++
		if !want[cur] {
			continue
		}
		e := h.entries[cur]
		if cbs.File != nil {
			cbs.File(e.Path)
		}
		if e.IsDir {
			if err := stageDir(dir, e); err != nil {
				return err
			}
			continue
		}
		if err := stageFile(dir, e, rc, h.modes[cur], buf, m); err != nil {
			return err
		}
	}
}
