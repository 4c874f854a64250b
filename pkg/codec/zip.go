// pkg/codec/zip.go
package codec

import (
	"archive/zip"
	"fmt"
)

// Zip reads ZIP archives with the standard library reader.
type Zip struct{}

func (Zip) Name() string { return "zip" }

func (Zip) Match(filename string, header []byte) bool {
	return magicZip.match(header) || magicZipEmpty.match(header)
}

func (Zip) Open(path string, password func() string) (Handle, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", path, err)
	}
	entries := make([]EntryInfo, len(rc.File))
	for i, f := range rc.File {
		entries[i] = EntryInfo{
			Path:  f.Name,
			Size:  f.UncompressedSize64,
			CRC:   f.CRC32,
			IsDir: f.FileInfo().IsDir(),
		}
	}
	return &zipHandle{rc: rc, path: path, entries: entries}, nil
}

type zipHandle struct {
	rc      *zip.ReadCloser
	path    string
	entries []EntryInfo
}

func (h *zipHandle) Entries() []EntryInfo { return h.entries }
func (h *zipHandle) Volumes() []string    { return []string{h.path} }
func (h *zipHandle) Close() error         { return h.rc.Close() }

func (h *zipHandle) Decode(dir string, indices []int, cbs Callbacks) error {
	m := &progressMeter{cbs: cbs}
	if err := m.tick(); err != nil {
		return err
	}

	buf := make([]byte, stageBufSize)
	for _, i := range indices {
		if i < 0 || i >= len(h.entries) {
			return fmt.Errorf("zip: entry index %d out of range", i)
		}
		e := h.entries[i]
		if cbs.File != nil {
			cbs.File(e.Path)
		}
		if e.IsDir {
			if err := stageDir(dir, e); err != nil {
				return err
			}
			continue
		}

		f := h.rc.File[i]
		r, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s in zip: %w", e.Path, err)
		}
		err = stageFile(dir, e, r, f.Mode(), buf, m)
		r.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
