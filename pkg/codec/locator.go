// pkg/codec/locator.go
package codec

import (
	"errors"
	"fmt"
)

// ErrNoEngine is returned by Locate when no source yields an engine.
var ErrNoEngine = errors.New("no usable decode engine")

// Source is one ranked engine candidate. Load may fail, a backend can be
// missing or refuse to initialize, and the locator then moves on to the
// next candidate.
type Source struct {
	Name string
	Load func() (*Engine, error)
}

// DefaultSources returns the candidates tried in order. Currently that is
// just the built-in pure-Go engine.
func DefaultSources() []Source {
	return []Source{{
		Name: "builtin",
		Load: func() (*Engine, error) { return Builtin(), nil },
	}}
}

// Locate tries sources in order and returns the first engine that loads,
// together with the name of the winning source. When every source fails
// the last failure is carried in the returned error.
func Locate(sources []Source) (*Engine, string, error) {
	var lastErr error
	for _, s := range sources {
		eng, err := s.Load()
		if err != nil {
			lastErr = fmt.Errorf("source %s: %w", s.Name, err)
			continue
		}
		if eng != nil {
			return eng, s.Name, nil
		}
		lastErr = fmt.Errorf("source %s returned no engine", s.Name)
	}
	if lastErr != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoEngine, lastErr)
	}
	return nil, "", ErrNoEngine
}
