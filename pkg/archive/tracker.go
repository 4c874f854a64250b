// pkg/archive/tracker.go
package archive

// destTracker remembers which archive entry claimed each destination so
// colliding fan-out mappings can be reported.
type destTracker struct {
	claimed map[string]string
}

func newDestTracker() *destTracker {
	return &destTracker{claimed: make(map[string]string)}
}

// claim records that archivePath writes dest. When dest was already taken
// it reports the previous claimant instead.
func (t *destTracker) claim(dest, archivePath string) (string, bool) {
	if prev, ok := t.claimed[dest]; ok {
		return prev, true
	}
	t.claimed[dest] = archivePath
	return "", false
}
