// internal/staging/staging.go
package staging

import (
	"os"
	"path/filepath"

	"github.com/avantoine/go-unarc/internal/fsutil"
)

// prefix keeps staged extraction dirs recognizable in the parent directory
const prefix = "unarc-"

// Area is the staging directory for one extraction pass. Decoded entries
// land here first and are fanned out to their destinations afterwards.
type Area struct {
	root string
}

// New creates a fresh, process-unique staging directory under parent. An
// empty parent means the system temp directory.
func New(parent string) (*Area, error) {
	root, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return nil, err
	}
	return &Area{root: root}, nil
}

// Root returns the staging directory path.
func (a *Area) Root() string { return a.root }

// Path resolves an archive-internal path to its staged location. Paths
// that would escape the area are rejected.
func (a *Area) Path(archivePath string) (string, error) {
	rel, err := fsutil.SanitizeRelPath(archivePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(a.root, rel), nil
}

// Remove deletes the staging directory and everything in it.
func (a *Area) Remove() error {
	return os.RemoveAll(a.root)
}
