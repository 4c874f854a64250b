// pkg/archive/entry.go
package archive

// EntryKind tags catalog entries so materialization can switch on them
// exhaustively.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
)

// Entry is one archive member plus the destinations it should land at.
// ArchivePath, Size, CRC and Kind mirror the engine catalog and never
// change; destinations belong to the caller and may be rewritten between
// extractions. An entry with no destinations is skipped.
type Entry struct {
	// ArchivePath is the member path exactly as the engine reports it.
	ArchivePath string

	// Size is the decompressed size in bytes. Directories report 0.
	Size uint64

	// CRC is the 32-bit checksum recorded in the archive, 0 when the
	// format does not carry one.
	CRC uint32

	Kind EntryKind

	outputs []string
}

// AddOutputPath appends a destination, relative to the extraction root
// passed to Extract. The same entry may be mapped to several places.
func (e *Entry) AddOutputPath(rel string) {
	e.outputs = append(e.outputs, rel)
}

// OutputPaths returns the destinations in the order they were added. The
// slice is owned by the entry.
func (e *Entry) OutputPaths() []string { return e.outputs }

// ClearOutputPaths drops all destinations, deselecting the entry.
func (e *Entry) ClearOutputPaths() { e.outputs = nil }

// selected reports whether the entry takes part in the next extraction.
func (e *Entry) selected() bool { return len(e.outputs) > 0 }
