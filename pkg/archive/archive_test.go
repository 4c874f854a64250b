// pkg/archive/archive_test.go
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avantoine/go-unarc/pkg/codec"
)

// fakeHandle is a scripted codec.Handle. Bodies are staged with plain
// file writes and progress is reported once per decoded entry.
type fakeHandle struct {
	entries   []codec.EntryInfo
	bodies    map[string]string
	volumes   []string
	decodeErr error // injected after the first entry is staged
	gotIdx    []int
	closed    int
}

func (h *fakeHandle) Entries() []codec.EntryInfo { return h.entries }
func (h *fakeHandle) Volumes() []string          { return h.volumes }
func (h *fakeHandle) Close() error               { h.closed++; return nil }

func (h *fakeHandle) Decode(dir string, indices []int, cbs codec.Callbacks) error {
	h.gotIdx = append([]int(nil), indices...)
	if cbs.Progress != nil && !cbs.Progress(0) {
		return codec.ErrStopped
	}
	var decoded uint64
	for n, i := range indices {
		if h.decodeErr != nil && n == 1 {
			return h.decodeErr
		}
		e := h.entries[i]
		if cbs.File != nil {
			cbs.File(e.Path)
		}
		target := filepath.Join(dir, filepath.FromSlash(strings.TrimSuffix(e.Path, "/")))
		if e.IsDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		body := h.bodies[e.Path]
		if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
			return err
		}
		decoded += uint64(len(body))
		if cbs.Progress != nil && !cbs.Progress(decoded) {
			return codec.ErrStopped
		}
	}
	return nil
}

// fakeProvider matches anything and opens a scripted handle.
type fakeProvider struct {
	handle  *fakeHandle
	openErr error
	// onOpen lets a test impersonate an engine that asks for passwords
	onOpen func(password func() string)
	opens  int
}

func (p *fakeProvider) Name() string              { return "fake" }
func (p *fakeProvider) Match(string, []byte) bool { return true }
func (p *fakeProvider) Open(path string, password func() string) (codec.Handle, error) {
	p.opens++
	if p.onOpen != nil {
		p.onOpen(password)
	}
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.handle, nil
}

func fakeSources(p codec.Provider) []codec.Source {
	return []codec.Source{{
		Name: "fake",
		Load: func() (*codec.Engine, error) { return codec.NewEngine(p), nil },
	}}
}

// touchArchive writes a placeholder archive file for the fake engine.
func touchArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake.arc")
	if err := os.WriteFile(path, []byte("fake archive bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func threeEntryHandle() *fakeHandle {
	return &fakeHandle{
		entries: []codec.EntryInfo{
			{Path: "a.txt", Size: 5, CRC: crc32.ChecksumIEEE([]byte("alpha"))},
			{Path: "dir/", IsDir: true},
			{Path: "dir/b.txt", Size: 7, CRC: crc32.ChecksumIEEE([]byte("bravo77"))},
		},
		bodies:  map[string]string{"a.txt": "alpha", "dir/b.txt": "bravo77"},
		volumes: []string{"fake.arc"},
	}
}

func TestNewWithoutSourcesIsInvalid(t *testing.T) {
	s := New(&Options{})
	defer s.Close()

	if s.IsValid() {
		t.Fatal("session without sources should be invalid")
	}
	if s.LastError() != ErrorLibraryNotFound {
		t.Fatalf("LastError = %v, want ErrorLibraryNotFound", s.LastError())
	}

	err := s.Open("anything", nil)
	if KindOf(err) != ErrorLibraryNotFound {
		t.Fatalf("Open on invalid session = %v", err)
	}

	errCalls := 0
	_, err = s.Extract(t.TempDir(), ExtractCallbacks{Error: func(string) { errCalls++ }})
	if KindOf(err) != ErrorLibraryNotFound {
		t.Fatalf("Extract on invalid session = %v", err)
	}
	if errCalls != 0 {
		t.Fatal("invalid session must fail fast without firing callbacks")
	}
	if len(s.List()) != 0 {
		t.Fatal("invalid session should have an empty catalog")
	}
}

func TestOpenMissingArchive(t *testing.T) {
	s := New(&Options{Sources: fakeSources(&fakeProvider{handle: threeEntryHandle()})})
	defer s.Close()

	err := s.Open(filepath.Join(t.TempDir(), "gone.arc"), nil)
	if KindOf(err) != ErrorArchiveNotFound {
		t.Fatalf("Open missing = %v, want ErrorArchiveNotFound", err)
	}
	if s.LastError() != ErrorArchiveNotFound {
		t.Fatalf("LastError = %v", s.LastError())
	}
	if !s.IsValid() {
		t.Fatal("a failed open must not invalidate the session")
	}

	if err := s.Open(t.TempDir(), nil); KindOf(err) != ErrorArchiveNotFound {
		t.Fatalf("Open on a directory = %v, want ErrorArchiveNotFound", err)
	}
}

func TestOpenBuildsCatalogAndResetsLastError(t *testing.T) {
	provider := &fakeProvider{handle: threeEntryHandle()}
	s := New(&Options{Sources: fakeSources(provider)})
	defer s.Close()

	// drive the session into an error state first
	if err := s.Open(filepath.Join(t.TempDir(), "gone"), nil); err == nil {
		t.Fatal("expected a failure")
	}

	if err := s.Open(touchArchive(t), nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.LastError() != ErrorNone {
		t.Fatalf("LastError after successful open = %v, want ErrorNone", s.LastError())
	}

	entries := s.List()
	if len(entries) != 3 {
		t.Fatalf("catalog has %d entries, want 3", len(entries))
	}
	if entries[0].ArchivePath != "a.txt" || entries[0].Size != 5 || entries[0].Kind != KindFile {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].ArchivePath != "dir/" || entries[1].Kind != KindDir {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if entries[2].CRC != crc32.ChecksumIEEE([]byte("bravo77")) {
		t.Errorf("entry 2 CRC = %08x", entries[2].CRC)
	}
	if len(entries[0].OutputPaths()) != 0 {
		t.Error("fresh catalog entries must start with no destinations")
	}
	if vols := s.Volumes(); len(vols) != 1 || vols[0] != "fake.arc" {
		t.Errorf("Volumes = %v", vols)
	}
}

func TestReopenDiscardsCatalog(t *testing.T) {
	provider := &fakeProvider{handle: threeEntryHandle()}
	s := New(&Options{Sources: fakeSources(provider)})
	defer s.Close()

	if err := s.Open(touchArchive(t), nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if provider.handle.closed != 0 {
		t.Fatal("handle closed prematurely")
	}

	// second open fails: the old catalog must be gone, not preserved
	provider.openErr = errors.New("corrupt header")
	if err := s.Open(touchArchive(t), nil); KindOf(err) != ErrorFailedToOpenArchive {
		t.Fatalf("reopen = %v, want ErrorFailedToOpenArchive", err)
	}
	if len(s.List()) != 0 {
		t.Fatal("failed reopen must leave an empty catalog")
	}
	if provider.handle.closed != 1 {
		t.Fatalf("previous handle closed %d times, want 1", provider.handle.closed)
	}
}

func TestExtractFanOut(t *testing.T) {
	handle := threeEntryHandle()
	s := New(&Options{Sources: fakeSources(&fakeProvider{handle: handle})})
	defer s.Close()

	if err := s.Open(touchArchive(t), nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	entries := s.List()
	entries[0].AddOutputPath("x/a1.txt")
	entries[0].AddOutputPath("y/a2.txt")
	entries[1].AddOutputPath("dirs/main")
	// entries[2] stays unselected

	var phases []ProgressPhase
	var totals []uint64
	var changes []FileChange
	var started []string
	out := t.TempDir()

	res, err := s.Extract(out, ExtractCallbacks{
		Progress: func(phase ProgressPhase, current, total uint64) bool {
			phases = append(phases, phase)
			totals = append(totals, total)
			return true
		},
		FileChange: func(change FileChange, path string) {
			changes = append(changes, change)
			started = append(started, path)
		},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// only the selected indices reach the engine
	if len(handle.gotIdx) != 2 || handle.gotIdx[0] != 0 || handle.gotIdx[1] != 1 {
		t.Errorf("decoded indices = %v, want [0 1]", handle.gotIdx)
	}

	for _, rel := range []string{"x/a1.txt", "y/a2.txt"} {
		got, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("%s missing: %v", rel, err)
		}
		if string(got) != "alpha" {
			t.Errorf("%s = %q", rel, got)
		}
	}
	info, err := os.Stat(filepath.Join(out, "dirs", "main"))
	if err != nil || !info.IsDir() {
		t.Errorf("dirs/main not materialized as a directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "dir", "b.txt")); !os.IsNotExist(err) {
		t.Error("unselected entry was materialized")
	}

	// the progress denominator is the selected size sum, not the archive
	// total
	for i, total := range totals {
		if total != 5 {
			t.Fatalf("progress call %d carried total %d, want 5", i, total)
		}
		if phases[i] != ProgressExtraction {
			t.Fatalf("progress call %d in phase %v", i, phases[i])
		}
	}
	for _, c := range changes {
		if c != FileChangeExtractionStart {
			t.Fatalf("file change marker = %v", c)
		}
	}
	if len(started) != 1 || started[0] != "a.txt" {
		t.Errorf("decode started for %v, want [a.txt]", started)
	}

	if res.Selected != 2 || res.FilesWritten != 2 || res.DirsCreated != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.BytesWritten != 10 || res.BytesDecoded != 5 {
		t.Errorf("byte counters = %+v", res)
	}
}

func TestExtractNothingSelected(t *testing.T) {
	tmp := t.TempDir()
	s := New(&Options{Sources: fakeSources(&fakeProvider{handle: threeEntryHandle()}), TempDir: tmp})
	defer s.Close()

	if err := s.Open(touchArchive(t), nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	res, err := s.Extract(t.TempDir(), ExtractCallbacks{})
	if err != nil {
		t.Fatalf("Extract with empty selection: %v", err)
	}
	if res.Selected != 0 || res.FilesWritten != 0 || res.DirsCreated != 0 {
		t.Errorf("result = %+v, want all zero", res)
	}
	assertNoStagingLeft(t, tmp)
}

func TestExtractWithoutOpen(t *testing.T) {
	s := New(&Options{Sources: fakeSources(&fakeProvider{handle: threeEntryHandle()})})
	defer s.Close()

	errCalls := 0
	_, err := s.Extract(t.TempDir(), ExtractCallbacks{Error: func(string) { errCalls++ }})
	if KindOf(err) != ErrorArchiveNotFound {
		t.Fatalf("Extract without open = %v, want ErrorArchiveNotFound", err)
	}
	if errCalls != 0 {
		t.Fatal("guard failures must not fire the error callback")
	}
}

func TestCancelIsStickyUntilClose(t *testing.T) {
	tmp := t.TempDir()
	provider := &fakeProvider{handle: threeEntryHandle()}
	s := New(&Options{Sources: fakeSources(provider), TempDir: tmp})
	defer s.Close()

	path := touchArchive(t)
	if err := s.Open(path, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SelectAll()
	s.Cancel()

	var reported []string
	_, err := s.Extract(t.TempDir(), ExtractCallbacks{
		Error: func(msg string) { reported = append(reported, msg) },
	})
	if KindOf(err) != ErrorExtractCancelled {
		t.Fatalf("Extract after Cancel = %v, want ErrorExtractCancelled", err)
	}
	if s.LastError() != ErrorExtractCancelled {
		t.Fatalf("LastError = %v", s.LastError())
	}
	if len(reported) != 1 {
		t.Fatalf("error callback fired %d times, want 1", len(reported))
	}
	assertNoStagingLeft(t, tmp)

	// still cancelled: the request is sticky
	if _, err := s.Extract(t.TempDir(), ExtractCallbacks{}); KindOf(err) != ErrorExtractCancelled {
		t.Fatalf("second Extract = %v, want ErrorExtractCancelled", err)
	}

	// Close rearms, after reopening the same session extracts again
	s.Close()
	if err := s.Open(path, nil); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s.SelectAll()
	if _, err := s.Extract(t.TempDir(), ExtractCallbacks{}); err != nil {
		t.Fatalf("Extract after Close rearm: %v", err)
	}
}

func TestProgressFalseCancels(t *testing.T) {
	s := New(&Options{Sources: fakeSources(&fakeProvider{handle: threeEntryHandle()})})
	defer s.Close()

	if err := s.Open(touchArchive(t), nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SelectAll()

	calls := 0
	_, err := s.Extract(t.TempDir(), ExtractCallbacks{
		Progress: func(ProgressPhase, uint64, uint64) bool {
			calls++
			return calls < 2
		},
	})
	if KindOf(err) != ErrorExtractCancelled {
		t.Fatalf("Extract = %v, want ErrorExtractCancelled", err)
	}
}

func TestDecodeFailureMapsToLibraryError(t *testing.T) {
	handle := threeEntryHandle()
	handle.decodeErr = errors.New("bad block")
	s := New(&Options{Sources: fakeSources(&fakeProvider{handle: handle})})
	defer s.Close()

	if err := s.Open(touchArchive(t), nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SelectAll()

	var reported []string
	_, err := s.Extract(t.TempDir(), ExtractCallbacks{
		Error: func(msg string) { reported = append(reported, msg) },
	})
	if KindOf(err) != ErrorLibraryError {
		t.Fatalf("Extract = %v, want ErrorLibraryError", err)
	}
	if len(reported) != 1 || !strings.Contains(reported[0], "bad block") {
		t.Fatalf("error callback got %v", reported)
	}
}

func TestMaterializationFailureAborts(t *testing.T) {
	tmp := t.TempDir()
	s := New(&Options{Sources: fakeSources(&fakeProvider{handle: threeEntryHandle()}), TempDir: tmp})
	defer s.Close()

	if err := s.Open(touchArchive(t), nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SelectAll()

	// the output root is an existing file, so every MkdirAll under it
	// must fail
	outputRoot := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(outputRoot, []byte("in the way"), 0o644); err != nil {
		t.Fatal(err)
	}

	var reported []string
	_, err := s.Extract(outputRoot, ExtractCallbacks{
		Error: func(msg string) { reported = append(reported, msg) },
	})
	if KindOf(err) != ErrorLibraryError {
		t.Fatalf("Extract = %v, want ErrorLibraryError", err)
	}
	if len(reported) != 1 {
		t.Fatalf("error callback fired %d times, want 1 (first failure is fatal)", len(reported))
	}
	assertNoStagingLeft(t, tmp)
}

func TestPasswordAskedOnceAcrossReopen(t *testing.T) {
	askedByEngine := 0
	provider := &fakeProvider{
		handle: threeEntryHandle(),
		onOpen: func(password func() string) {
			// an engine may consult credentials more than once
			askedByEngine++
			if got := password(); got != "hunter2" {
				panic(fmt.Sprintf("engine saw password %q", got))
			}
			if got := password(); got != "hunter2" {
				panic("cached password changed between asks")
			}
		},
	}
	s := New(&Options{Sources: fakeSources(provider)})
	defer s.Close()

	userCalls := 0
	cb := func() string { userCalls++; return "hunter2" }

	path := touchArchive(t)
	if err := s.Open(path, cb); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if userCalls != 1 {
		t.Fatalf("user callback ran %d times during open, want 1", userCalls)
	}

	// the cached password survives Close and the next Open never asks
	s.Close()
	if err := s.Open(path, cb); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if userCalls != 1 {
		t.Fatalf("user callback ran %d times in total, want 1", userCalls)
	}
	if askedByEngine != 2 {
		t.Fatalf("engine asked %d times, want 2", askedByEngine)
	}
}

func TestEmptyPasswordIsAskedAgain(t *testing.T) {
	answers := []string{"", "sesame"}
	provider := &fakeProvider{
		handle: threeEntryHandle(),
		onOpen: func(password func() string) {
			password() // first ask, the user has nothing yet
			password() // second ask gets the real answer
		},
	}
	s := New(&Options{Sources: fakeSources(provider)})
	defer s.Close()

	userCalls := 0
	cb := func() string {
		answer := answers[userCalls]
		userCalls++
		return answer
	}
	if err := s.Open(touchArchive(t), cb); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if userCalls != 2 {
		t.Fatalf("user callback ran %d times, want 2 (empty answers are retried)", userCalls)
	}
}

func TestVerifyCatchesCorruptStaging(t *testing.T) {
	handle := threeEntryHandle()
	// stage different bytes than the catalog CRC promises
	handle.bodies["a.txt"] = "bogus"

	s := New(&Options{Sources: fakeSources(&fakeProvider{handle: handle}), Verify: true})
	defer s.Close()

	if err := s.Open(touchArchive(t), nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.List()[0].AddOutputPath("a.txt")

	var reported []string
	_, err := s.Extract(t.TempDir(), ExtractCallbacks{
		Error: func(msg string) { reported = append(reported, msg) },
	})
	if KindOf(err) != ErrorLibraryError {
		t.Fatalf("Extract = %v, want ErrorLibraryError", err)
	}
	if len(reported) != 1 || !strings.Contains(reported[0], "verify") {
		t.Fatalf("error callback got %v", reported)
	}
}

func TestDuplicateDestinationsWarnAndOverwrite(t *testing.T) {
	handle := threeEntryHandle()
	s := New(&Options{Sources: fakeSources(&fakeProvider{handle: handle})})
	defer s.Close()

	var warnings []string
	s.SetLogCallback(func(level LogLevel, msg string) {
		if level == LogWarning {
			warnings = append(warnings, msg)
		}
	})

	if err := s.Open(touchArchive(t), nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	entries := s.List()
	entries[0].AddOutputPath("same.txt")
	entries[2].AddOutputPath("same.txt")

	out := t.TempDir()
	res, err := s.Extract(out, ExtractCallbacks{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "same.txt") {
		t.Fatalf("warnings = %v", warnings)
	}
	if res.FilesWritten != 2 {
		t.Fatalf("FilesWritten = %d, want 2", res.FilesWritten)
	}
	// catalog order wins: the later entry lands last
	got, err := os.ReadFile(filepath.Join(out, "same.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "bravo77" {
		t.Fatalf("same.txt = %q, want the later entry's content", got)
	}
}

func TestSelectAllAndClear(t *testing.T) {
	s := New(&Options{Sources: fakeSources(&fakeProvider{handle: threeEntryHandle()})})
	defer s.Close()

	if err := s.Open(touchArchive(t), nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SelectAll()
	for _, e := range s.List() {
		outs := e.OutputPaths()
		if len(outs) != 1 || outs[0] != e.ArchivePath {
			t.Fatalf("entry %s outputs = %v", e.ArchivePath, outs)
		}
	}
	s.List()[0].ClearOutputPaths()
	if len(s.List()[0].OutputPaths()) != 0 {
		t.Fatal("ClearOutputPaths left destinations behind")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := New(&Options{Sources: fakeSources(&fakeProvider{handle: threeEntryHandle()})})
	path := touchArchive(t)
	if err := s.Open(path, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()
	s.Close()

	if len(s.List()) != 0 {
		t.Fatal("catalog survives Close")
	}
	if s.Volumes() != nil {
		t.Fatal("volumes survive Close")
	}
	if !s.IsValid() {
		t.Fatal("Close must not invalidate the session")
	}
	if err := s.Open(path, nil); err != nil {
		t.Fatalf("Open after Close: %v", err)
	}
	s.Close()
}

func TestSessionEndToEndZip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "payload.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"readme.md":    "# hello\n",
		"src/main.go":  "package main\n",
		"assets/a.dat": strings.Repeat("x", 4096),
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions()
	opts.Verify = true
	s := New(opts)
	defer s.Close()

	if !s.IsValid() {
		t.Fatal("default sources should produce a valid session")
	}
	if err := s.Open(zipPath, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SelectAll()

	out := t.TempDir()
	res, err := s.Extract(out, ExtractCallbacks{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.FilesWritten != 3 {
		t.Fatalf("FilesWritten = %d, want 3", res.FilesWritten)
	}
	got, err := os.ReadFile(filepath.Join(out, "src", "main.go"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "package main\n" {
		t.Fatalf("src/main.go = %q", got)
	}
}

// assertNoStagingLeft fails when staging directories survived in dir.
func assertNoStagingLeft(t *testing.T, dir string) {
	t.Helper()
	items, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range items {
		t.Fatalf("staging leftover %s in %s", item.Name(), dir)
	}
}
