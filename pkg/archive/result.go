// pkg/archive/result.go
package archive

import (
	"fmt"
	"time"
)

// ExtractResult reports what one Extract call did.
type ExtractResult struct {
	// Selected is how many catalog entries had at least one destination.
	Selected int

	// FilesWritten counts materialized destination files, one per
	// destination, so a fanned-out entry counts more than once.
	FilesWritten int

	// DirsCreated counts materialized destination directories.
	DirsCreated int

	// BytesDecoded is how much entry data the engine decoded.
	BytesDecoded uint64

	// BytesWritten is the total written across all destination copies.
	BytesWritten uint64

	Duration time.Duration
}

// Summary renders a short human-readable report.
func (r *ExtractResult) Summary() string {
	return fmt.Sprintf("extracted %d entries (%d files, %d dirs), %s decoded, %s written in %s\n",
		r.Selected, r.FilesWritten, r.DirsCreated,
		FormatSize(r.BytesDecoded), FormatSize(r.BytesWritten),
		r.Duration.Round(time.Millisecond))
}
