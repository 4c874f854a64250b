// pkg/archive/options.go
package archive

import "github.com/avantoine/go-unarc/pkg/codec"

// Options configures a Session
type Options struct {
	// Sources are the ranked engine candidates tried by New. The first
	// one that loads wins.
	Sources []codec.Source

	// TempDir is where staging areas are created.
	// Default: the system temp directory
	TempDir string

	// Verify re-checks staged files against catalog CRCs and compares a
	// BLAKE3 digest of every destination copy against its staged source
	Verify bool
}

// DefaultOptions returns the options used when New is handed nil: the
// built-in pure-Go engine, system temp staging, no verification.
func DefaultOptions() *Options {
	return &Options{Sources: codec.DefaultSources()}
}
