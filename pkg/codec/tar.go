// pkg/codec/tar.go
package codec

import (
	"archive/tar"
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Tar reads tar archives, optionally compressed with gzip, zstd, xz, lz4
// or bzip2. A compressed stream that does not contain a tar is cataloged
// as a single payload file.
type Tar struct{}

func (Tar) Name() string { return "tar" }

func (Tar) Match(filename string, header []byte) bool {
	if sniffCompression(header) != compressionNone || magicTar.match(header) {
		return true
	}
	// pre-POSIX tars carry no magic at all
	return strings.HasSuffix(strings.ToLower(filename), ".tar")
}

func (Tar) Open(path string, password func() string) (Handle, error) {
	header, err := sniffHeader(path)
	if err != nil {
		return nil, err
	}
	h := &tarHandle{path: path, comp: sniffCompression(header)}
	if err := h.scan(); err != nil {
		return nil, err
	}
	return h, nil
}

type tarHandle struct {
	path     string
	comp     compression
	single   bool // bare compressed payload, no tar inside
	gzipName string
	entries  []EntryInfo
	modes    []os.FileMode
}

// openStream opens the archive file and layers the detected decompressor
// on top. The returned close function releases both.
func (h *tarHandle) openStream() (io.Reader, func() error, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, nil, err
	}
	br := bufio.NewReaderSize(f, stageBufSize)

	var r io.Reader
	var layer io.Closer
	switch h.comp {
	case compressionNone:
		r = br
	case compressionGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("open gzip %s: %w", h.path, err)
		}
		h.gzipName = gz.Name
		r = gz
		layer = gz
	case compressionBzip2:
		r = bzip2.NewReader(br)
	case compressionXz:
		xr, err := xz.NewReader(br)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("open xz %s: %w", h.path, err)
		}
		r = xr
	case compressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("open zstd %s: %w", h.path, err)
		}
		rc := zr.IOReadCloser()
		r = rc
		layer = rc
	case compressionLZ4:
		r = lz4.NewReader(br)
	}

	closeStream := func() error {
		var first error
		if layer != nil {
			if err := layer.Close(); err != nil {
				first = err
			}
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		return first
	}
	return r, closeStream, nil
}

// scan builds the catalog. Regular files and directories keep their tar
// order; other entry types are dropped from both the catalog and later
// decodes, so positions stay aligned.
func (h *tarHandle) scan() error {
	r, closeStream, err := h.openStream()
	if err != nil {
		return err
	}

	tr := tar.NewReader(r)
	hdr, err := tr.Next()
	if err != nil && err != io.EOF && h.comp != compressionNone {
		// compressed, but no tar inside: catalog the bare payload
		closeStream()
		return h.scanSingle()
	}
	for err == nil {
		h.addEntry(hdr)
		hdr, err = tr.Next()
	}
	cerr := closeStream()
	if err != io.EOF {
		return fmt.Errorf("read tar %s: %w", h.path, err)
	}
	return cerr
}

func (h *tarHandle) addEntry(hdr *tar.Header) {
	switch hdr.Typeflag {
	case tar.TypeReg:
		h.entries = append(h.entries, EntryInfo{Path: hdr.Name, Size: uint64(hdr.Size)})
		h.modes = append(h.modes, hdr.FileInfo().Mode())
	case tar.TypeDir:
		h.entries = append(h.entries, EntryInfo{Path: hdr.Name, IsDir: true})
		h.modes = append(h.modes, hdr.FileInfo().Mode())
	}
}

// scanSingle catalogs a bare compressed stream as one synthetic file
// entry. These formats do not record the decompressed size, so the stream
// is drained once to measure it.
func (h *tarHandle) scanSingle() error {
	h.single = true
	r, closeStream, err := h.openStream()
	if err != nil {
		return err
	}
	n, err := io.Copy(io.Discard, r)
	if cerr := closeStream(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("measure %s: %w", h.path, err)
	}
	h.entries = []EntryInfo{{Path: h.payloadName(), Size: uint64(n)}}
	h.modes = []os.FileMode{0o644}
	return nil
}

// payloadName picks a name for a bare compressed payload: the name stored
// in the gzip header when present, otherwise the archive filename with its
// compression extension stripped.
func (h *tarHandle) payloadName() string {
	if h.gzipName != "" {
		return filepath.Base(h.gzipName)
	}
	base := filepath.Base(h.path)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".gz", ".bz2", ".xz", ".zst", ".lz4":
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if base == "" || base == "." {
		base = "data"
	}
	return base
}

func (h *tarHandle) Entries() []EntryInfo { return h.entries }
func (h *tarHandle) Volumes() []string    { return []string{h.path} }
func (h *tarHandle) Close() error         { return nil }

func (h *tarHandle) Decode(dir string, indices []int, cbs Callbacks) error {
	m := &progressMeter{cbs: cbs}
	if err := m.tick(); err != nil {
		return err
	}
	want := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(h.entries) {
			return fmt.Errorf("tar: entry index %d out of range", i)
		}
		want[i] = true
	}

	if h.single {
		return h.decodeSingle(dir, want, cbs, m)
	}

	r, closeStream, err := h.openStream()
	if err != nil {
		return err
	}
	defer closeStream()

	buf := make([]byte, stageBufSize)
	tr := tar.NewReader(r)
	idx := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar %s: %w", h.path, err)
		}
		switch hdr.Typeflag {
		case tar.TypeReg, tar.TypeDir:
		default:
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
		if err := stageFile(dir, e, tr, h.modes[cur], buf, m); err != nil {
			return err
		}
	}
}

func (h *tarHandle) decodeSingle(dir string, want map[int]bool, cbs Callbacks, m *progressMeter) error {
	if !want[0] {
		return nil
	}
	e := h.entries[0]
	if cbs.File != nil {
		cbs.File(e.Path)
	}
	r, closeStream, err := h.openStream()
	if err != nil {
		return err
	}
	buf := make([]byte, stageBufSize)
	err = stageFile(dir, e, r, h.modes[0], buf, m)
	if cerr := closeStream(); err == nil {
		err = cerr
	}
	return err
}
