// pkg/codec/engine.go
package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFormat means no provider recognized the file.
	ErrUnknownFormat = errors.New("unrecognized archive format")

	// ErrStopped is returned by Decode when the progress hook asked for
	// a stop.
	ErrStopped = errors.New("decode stopped by caller")
)

// EntryInfo describes one archive entry as reported by a provider. Entry
// positions are stable for the lifetime of a Handle. Formats without
// per-entry checksums report CRC 0.
type EntryInfo struct {
	Path  string
	Size  uint64
	CRC   uint32
	IsDir bool
}

// Callbacks are the hooks a Handle drives during Decode. Nil hooks are
// skipped. Progress receives the cumulative decoded byte count and returns
// false to stop the decode; File fires as each selected entry starts.
type Callbacks struct {
	Progress func(decoded uint64) bool
	File     func(path string)
}

// Handle is an opened archive.
type Handle interface {
	// Entries returns the catalog in archive order. The slice is owned
	// by the handle and must not be modified.
	Entries() []EntryInfo

	// Volumes returns the files on disk backing the archive.
	Volumes() []string

	// Decode extracts the entries at the given catalog positions into
	// dir, preserving archive-internal paths. It returns ErrStopped when
	// the progress hook requests a stop.
	Decode(dir string, indices []int, cbs Callbacks) error

	Close() error
}

// Provider opens archives of one format family.
type Provider interface {
	Name() string

	// Match reports whether the provider recognizes the file, primarily
	// by magic bytes in header and, as a weak fallback, by filename.
	Match(filename string, header []byte) bool

	// Open opens the archive at path. password is consulted lazily, only
	// when the archive turns out to require credentials, and may be nil.
	Open(path string, password func() string) (Handle, error)
}

// Engine is a ranked set of providers behind one Open call.
type Engine struct {
	providers []Provider
}

// NewEngine builds an engine trying providers in the given order.
func NewEngine(providers ...Provider) *Engine {
	return &Engine{providers: providers}
}

// Open sniffs the file and opens it with the first matching provider.
func (e *Engine) Open(path string, password func() string) (Handle, error) {
	header, err := sniffHeader(path)
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	for _, p := range e.providers {
		if p.Match(path, header) {
			return p.Open(path, password)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Builtin returns the pure-Go engine with every bundled provider, ranked
// so that the most specific magics match first.
func Builtin() *Engine {
	return NewEngine(&SevenZip{}, &Zip{}, &Rar{}, &Tar{})
}
