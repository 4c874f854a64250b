// internal/fsutil/fsutil_test.go
package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeRelPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain file", in: "a.txt", want: "a.txt"},
		{name: "nested", in: "dir/sub/a.txt", want: filepath.Join("dir", "sub", "a.txt")},
		{name: "trailing slash", in: "dir/sub/", want: filepath.Join("dir", "sub")},
		{name: "backslash separators", in: `dir\sub\a.txt`, want: filepath.Join("dir", "sub", "a.txt")},
		{name: "inner dot segments", in: "dir/./a.txt", want: filepath.Join("dir", "a.txt")},
		{name: "collapsing stays inside", in: "dir/sub/../a.txt", want: filepath.Join("dir", "a.txt")},
		{name: "absolute", in: "/etc/passwd", wantErr: true},
		{name: "parent traversal", in: "../a.txt", wantErr: true},
		{name: "hidden traversal", in: "dir/../../a.txt", wantErr: true},
		{name: "bare parent", in: "..", wantErr: true},
		{name: "drive prefix", in: `C:\Windows\a.txt`, wantErr: true},
		{name: "nul byte", in: "a\x00.txt", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "dot only", in: ".", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SanitizeRelPath(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("SanitizeRelPath(%q) = %q, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeRelPath(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("SanitizeRelPath(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCopyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	payload := strings.Repeat("payload ", 50000) // larger than one copy buffer
	if err := os.WriteFile(src, []byte(payload), 0o640); err != nil {
		t.Fatal(err)
	}

	n, err := CopyFile(src, dst)
	if err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("CopyFile wrote %d bytes, want %d", n, len(payload))
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Fatal("copied content differs from source")
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Fatalf("destination mode = %v, want %v", info.Mode().Perm(), os.FileMode(0o640))
	}
}

func TestCopyFileReplacesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	if err := os.WriteFile(src, []byte("short"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("a much longer previous payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "short" {
		t.Fatalf("destination = %q, want %q", got, "short")
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("CopyFile with missing source should fail")
	}
}
