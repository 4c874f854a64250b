// internal/fsutil/fsutil.go
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// copyBufSize is the buffer size used for file copies
const copyBufSize = 256 * 1024

// SanitizeRelPath normalizes an archive-internal path and rejects anything
// that could land outside the extraction root: absolute paths, parent
// traversal, drive prefixes and NUL bytes. Backslash separators are
// accepted and normalized, archives written on Windows use them.
func SanitizeRelPath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("path %q contains a NUL byte", p)
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if len(p) >= 2 && p[1] == ':' {
		return "", fmt.Errorf("path %q has a drive prefix", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == "" {
		return "", fmt.Errorf("path %q is empty after cleaning", p)
	}
	if path.IsAbs(clean) {
		return "", fmt.Errorf("path %q is absolute", p)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes the extraction root", p)
	}
	return filepath.FromSlash(clean), nil
}

// CopyFile copies src to dst, replacing dst if it already exists and
// carrying over the source permission bits. A partially written dst is
// removed again when the copy fails.
func CopyFile(src, dst string) (written int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}
	perm := info.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	buf := make([]byte, copyBufSize)
	written, err = io.CopyBuffer(out, in, buf)
	if err != nil {
		return written, err
	}
	if err = out.Sync(); err != nil {
		return written, err
	}
	return written, nil
}
