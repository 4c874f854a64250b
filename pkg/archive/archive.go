// pkg/archive/archive.go
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/avantoine/go-unarc/internal/fsutil"
	"github.com/avantoine/go-unarc/internal/staging"
	"github.com/avantoine/go-unarc/pkg/codec"
)

// Session drives one archive at a time through open, catalog and two-phase
// extraction. A session is not safe for concurrent use, with one
// exception: Cancel may be called from any goroutine while an extraction
// runs.
type Session struct {
	engine     *codec.Engine
	engineName string
	valid      bool
	lastErr    ErrorKind

	opts     Options
	logCb    LogCallback
	passCb   PasswordCallback
	password string

	handle  codec.Handle
	entries []*Entry
	total   uint64

	cancel atomic.Bool
	area   *staging.Area
}

// New locates a decode engine from opts.Sources and returns a session
// bound to it. A nil opts means DefaultOptions. When no source yields an
// engine the session is permanently invalid and every operation reports
// ErrorLibraryNotFound.
func New(opts *Options) *Session {
	if opts == nil {
		opts = DefaultOptions()
	}
	s := &Session{opts: *opts, logCb: func(LogLevel, string) {}}

	eng, name, err := codec.Locate(opts.Sources)
	if err != nil {
		s.lastErr = ErrorLibraryNotFound
		return s
	}
	s.engine = eng
	s.engineName = name
	s.valid = true
	return s
}

// IsValid reports whether the session has a usable decode engine.
func (s *Session) IsValid() bool { return s.valid }

// LastError returns the classification of the most recent failure. A
// successful Open resets it to ErrorNone.
func (s *Session) LastError() ErrorKind { return s.lastErr }

// SetLogCallback replaces the session's log sink. Nil silences logging.
func (s *Session) SetLogCallback(cb LogCallback) {
	if cb == nil {
		cb = func(LogLevel, string) {}
	}
	s.logCb = cb
}

func (s *Session) logf(level LogLevel, format string, args ...interface{}) {
	s.logCb(level, fmt.Sprintf(format, args...))
}

// fail records the classification and returns the matching error.
func (s *Session) fail(kind ErrorKind, err error) error {
	s.lastErr = kind
	return newError(kind, err)
}

// extractFail additionally reports the failure through the extraction
// error callback.
func (s *Session) extractFail(cbs ExtractCallbacks, kind ErrorKind, err error) error {
	s.lastErr = kind
	if cbs.Error != nil {
		cbs.Error(err.Error())
	}
	return newError(kind, err)
}

// fetchPassword is the function handed to the engine. It asks the user
// callback at most once for a non-empty password and caches the answer
// for the lifetime of the session.
func (s *Session) fetchPassword() string {
	if s.password == "" && s.passCb != nil {
		s.password = s.passCb()
	}
	return s.password
}

// Open loads the archive at path, auto-detecting its format, and rebuilds
// the entry catalog in engine order. Whatever was open before is discarded
// first, even when the new open fails. password is only consulted when
// the archive turns out to be encrypted.
func (s *Session) Open(path string, password PasswordCallback) error {
	if !s.valid {
		s.logf(LogError, "could not find a decode engine")
		return s.fail(ErrorLibraryNotFound, errors.New("no decode engine"))
	}

	s.discard()
	s.passCb = password

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a directory", path)
		}
		s.logf(LogError, "archive not found: %v", err)
		return s.fail(ErrorArchiveNotFound, err)
	}

	handle, err := s.engine.Open(path, s.fetchPassword)
	if err != nil {
		s.logf(LogError, "open %s: %v", path, err)
		return s.fail(ErrorFailedToOpenArchive, err)
	}
	s.handle = handle

	infos := handle.Entries()
	s.entries = make([]*Entry, len(infos))
	s.total = 0
	for i, fi := range infos {
		kind := KindFile
		if fi.IsDir {
			kind = KindDir
		}
		s.entries[i] = &Entry{ArchivePath: fi.Path, Size: fi.Size, CRC: fi.CRC, Kind: kind}
		s.total += fi.Size
	}

	s.lastErr = ErrorNone
	s.logf(LogDebug, "opened %s via %s: %d entries, %s",
		path, s.engineName, len(s.entries), FormatSize(s.total))
	return nil
}

// List returns the catalog in engine order. Entries are live: destination
// edits apply to the next Extract. The slice is rebuilt by Open and
// released by Close.
func (s *Session) List() []*Entry { return s.entries }

// Volumes returns the files on disk backing the open archive, more than
// one for multi-volume sets.
func (s *Session) Volumes() []string {
	if s.handle == nil {
		return nil
	}
	return s.handle.Volumes()
}

// SelectAll maps every entry to its own archive path under the extraction
// root, replacing existing destinations.
func (s *Session) SelectAll() {
	for _, e := range s.entries {
		e.outputs = []string{e.ArchivePath}
	}
}

// Cancel requests that a running extraction stop at its next progress
// checkpoint. The request is sticky until Close, a new Extract on the
// same session fails immediately.
func (s *Session) Cancel() {
	s.cancel.Store(true)
}

// Extract decodes every selected entry into a fresh staging directory and
// fans the results out to each destination under outputRoot. The first
// materialization failure aborts. The staging directory is removed on all
// paths.
func (s *Session) Extract(outputRoot string, cbs ExtractCallbacks) (*ExtractResult, error) {
	if !s.valid {
		return nil, s.fail(ErrorLibraryNotFound, errors.New("no decode engine"))
	}
	if s.handle == nil {
		return nil, s.fail(ErrorArchiveNotFound, errors.New("no archive is open"))
	}

	start := time.Now()

	var indices []int
	var selectedTotal uint64
	for i, e := range s.entries {
		if e.selected() {
			indices = append(indices, i)
			selectedTotal += e.Size
		}
	}

	area, err := staging.New(s.opts.TempDir)
	if err != nil {
		return nil, s.extractFail(cbs, ErrorOutOfMemory,
			fmt.Errorf("create staging directory: %w", err))
	}
	s.area = area
	defer func() {
		if rmErr := area.Remove(); rmErr != nil {
			s.logf(LogWarning, "remove staging directory %s: %v", area.Root(), rmErr)
		}
		s.area = nil
	}()

	// the progress wrapper is the cancellation checkpoint: the decode
	// continues only while the user callback agrees and Cancel has not
	// been called
	var decodedBytes uint64
	ccbs := codec.Callbacks{
		Progress: func(decoded uint64) bool {
			decodedBytes = decoded
			cont := true
			if cbs.Progress != nil {
				cont = cbs.Progress(ProgressExtraction, decoded, selectedTotal)
			}
			return cont && !s.cancel.Load()
		},
	}
	if cbs.FileChange != nil {
		ccbs.File = func(path string) {
			cbs.FileChange(FileChangeExtractionStart, path)
		}
	}

	if err := s.handle.Decode(area.Root(), indices, ccbs); err != nil {
		kind := ErrorLibraryError
		if errors.Is(err, codec.ErrStopped) || s.cancel.Load() {
			kind = ErrorExtractCancelled
		}
		return nil, s.extractFail(cbs, kind, err)
	}

	if s.opts.Verify {
		for _, i := range indices {
			e := s.entries[i]
			if e.Kind != KindFile {
				continue
			}
			staged, perr := area.Path(e.ArchivePath)
			if perr == nil {
				perr = verifyStaged(staged, e.CRC)
			}
			if perr != nil {
				return nil, s.extractFail(cbs, ErrorLibraryError,
					fmt.Errorf("verify %s: %w", e.ArchivePath, perr))
			}
		}
	}

	res := &ExtractResult{Selected: len(indices)}
	tracker := newDestTracker()
	for _, e := range s.entries {
		for _, out := range e.OutputPaths() {
			target := filepath.Join(outputRoot, out)
			if prev, dup := tracker.claim(target, e.ArchivePath); dup {
				s.logf(LogWarning, "destination %s claimed by both %s and %s",
					target, prev, e.ArchivePath)
			}
			switch e.Kind {
			case KindDir:
				if err := os.MkdirAll(target, 0o755); err != nil {
					return nil, s.extractFail(cbs, ErrorLibraryError,
						fmt.Errorf("create output directory %s: %w", target, err))
				}
				res.DirsCreated++
			case KindFile:
				if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
					return nil, s.extractFail(cbs, ErrorLibraryError,
						fmt.Errorf("create output directory %s: %w", filepath.Dir(target), err))
				}
				staged, perr := area.Path(e.ArchivePath)
				if perr != nil {
					return nil, s.extractFail(cbs, ErrorLibraryError,
						fmt.Errorf("resolve staged copy of %s: %w", e.ArchivePath, perr))
				}
				n, cerr := fsutil.CopyFile(staged, target)
				if cerr != nil {
					return nil, s.extractFail(cbs, ErrorLibraryError,
						fmt.Errorf("write output file %s: %w", target, cerr))
				}
				res.FilesWritten++
				res.BytesWritten += uint64(n)
				if s.opts.Verify {
					if verr := verifyCopy(staged, target); verr != nil {
						return nil, s.extractFail(cbs, ErrorLibraryError,
							fmt.Errorf("verify output file %s: %w", target, verr))
					}
				}
			}
		}
	}

	res.BytesDecoded = decodedBytes
	res.Duration = time.Since(start)
	s.logf(LogInfo, "extracted %d entries to %s in %s",
		res.Selected, outputRoot, res.Duration.Round(time.Millisecond))
	return res, nil
}

// Close releases the archive and catalog and rearms cancellation. The
// cached password survives for the next Open on this session. Close is
// safe to call repeatedly.
func (s *Session) Close() {
	s.discard()
	s.passCb = nil
	s.cancel.Store(false)
}

// discard drops the open handle, catalog and any stale staging area.
func (s *Session) discard() {
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			s.logf(LogWarning, "close archive: %v", err)
		}
		s.handle = nil
	}
	s.entries = nil
	s.total = 0
	if s.area != nil {
		if err := s.area.Remove(); err != nil {
			s.logf(LogWarning, "remove staging directory %s: %v", s.area.Root(), err)
		}
		s.area = nil
	}
}
